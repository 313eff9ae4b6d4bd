package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tbourn/review-insights-backend/internal/utils"
)

// MaxActions is the number of recommended actions kept from a model reply.
const MaxActions = 3

// previewRunes bounds how much of an unparsable reply is kept for diagnosis.
const previewRunes = 200

// ModelOutput is the structured analysis extracted from one model reply.
type ModelOutput struct {
	UserAIResponse     string   `json:"user_ai_response"    validate:"required"`
	AdminSummary       string   `json:"admin_summary"       validate:"required"`
	RecommendedActions []string `json:"recommended_actions" validate:"required,min=1,dive,required"`
}

// ParseError reports a reply that could not be turned into a ModelOutput.
// Preview holds at most the first 200 runes of the raw text.
type ParseError struct {
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return "invalid model response format: " + e.Preview
}

func (e *ParseError) Unwrap() error { return e.Err }

var requiredKeys = [...]string{"user_ai_response", "admin_summary", "recommended_actions"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse extracts a ModelOutput from untrusted model text. The whole input is
// tried first; failing that, the span from the first '{' to the last '}'.
func Parse(raw string) (*ModelOutput, error) {
	out, err := decodeOutput(raw)
	if err == nil {
		return out, nil
	}

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		out, ferr := decodeOutput(raw[start : end+1])
		if ferr == nil {
			return out, nil
		}
		err = ferr
	}

	return nil, &ParseError{Preview: utils.TruncateRunes(raw, previewRunes), Err: err}
}

func decodeOutput(s string) (*ModelOutput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, err
	}
	for _, k := range requiredKeys {
		if _, ok := fields[k]; !ok {
			return nil, fmt.Errorf("missing key %q", k)
		}
	}

	var out ModelOutput
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	if err := validate.Struct(out); err != nil {
		return nil, err
	}
	if len(out.RecommendedActions) > MaxActions {
		out.RecommendedActions = out.RecommendedActions[:MaxActions]
	}
	return &out, nil
}
