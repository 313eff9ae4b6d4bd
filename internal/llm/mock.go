package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/tbourn/review-insights-backend/internal/utils"
)

// Mock is an offline provider. Its output depends only on the rating and
// the review text, so identical inputs always yield identical results.
type Mock struct {
	Model string
}

// NewMock returns a Mock reporting model as its model name.
func NewMock(model string) *Mock { return &Mock{Model: model} }

type mockTone struct {
	label     string
	responses []string
	actions   []string
}

var (
	toneNegative = mockTone{
		label: "negative",
		responses: []string{
			"We're sorry your experience fell short. Your feedback has been shared with our team so we can make this right.",
			"Thank you for telling us about this. We apologize for the trouble and are looking into what went wrong.",
		},
		actions: []string{
			"Follow up with the customer within 24 hours",
			"Review the reported issue with the responsible team",
			"Track recurrence of this complaint over the next month",
			"Offer a goodwill gesture if the issue is confirmed",
		},
	}
	toneNeutral = mockTone{
		label: "mixed",
		responses: []string{
			"Thanks for your honest feedback. We're glad parts of your visit went well and we'll work on the rest.",
			"We appreciate you taking the time to share this. Your comments help us find where to improve.",
		},
		actions: []string{
			"Identify the specific pain points mentioned",
			"Compare with other mid-range reviews for common themes",
			"Share the feedback in the next team meeting",
		},
	}
	tonePositive = mockTone{
		label: "positive",
		responses: []string{
			"Thank you so much for the kind words! We're thrilled you had a great experience and hope to see you again soon.",
			"We really appreciate your review. It's great to hear things went well, and we'll pass your thanks to the team.",
		},
		actions: []string{
			"Share the praise with the team",
			"Invite the customer to a loyalty program",
			"Consider featuring this review as a testimonial",
		},
	}
)

func toneFor(rating int) mockTone {
	switch {
	case rating <= 2:
		return toneNegative
	case rating == 3:
		return toneNeutral
	default:
		return tonePositive
	}
}

// Generate returns a canned analysis. It never fails unless ctx is done.
func (m *Mock) Generate(ctx context.Context, review string, rating int) (*ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: "mock", Err: err}
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(review))
	sum := h.Sum64()

	tone := toneFor(rating)
	n := 1 + int(sum%uint64(MaxActions))
	if n > len(tone.actions) {
		n = len(tone.actions)
	}
	offset := int((sum / 7) % uint64(len(tone.actions)))
	actions := make([]string, 0, n)
	for i := 0; i < n; i++ {
		actions = append(actions, tone.actions[(offset+i)%len(tone.actions)])
	}

	excerpt := utils.TruncateRunes(strings.Join(strings.Fields(review), " "), 60)
	return &ModelOutput{
		UserAIResponse:     tone.responses[int(sum/13)%len(tone.responses)],
		AdminSummary:       fmt.Sprintf("%d/5 %s review: %q", rating, tone.label, excerpt),
		RecommendedActions: actions,
	}, nil
}
