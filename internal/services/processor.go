// Package services – Processor
//
// This file implements the background step that finalizes a submission.
// Processing is fire-and-forget: Trigger starts one goroutine per submission
// that survives the originating request. Nothing is queued or persisted, so
// a process exit between insert and processing leaves the row PENDING.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/llm"
	"github.com/tbourn/review-insights-backend/internal/repo"
)

const failWriteTimeout = 10 * time.Second

// ModelClient produces the analysis for one submission.
type ModelClient interface {
	Generate(ctx context.Context, review string, rating int) (*llm.ModelOutput, error)
}

// Processor moves PENDING submissions to COMPLETED or FAILED.
type Processor struct {
	DB      *gorm.DB
	Model   ModelClient
	Logger  zerolog.Logger
	Timeout time.Duration // bound for one detached run; 0 = none

	wg sync.WaitGroup
}

// NewProcessor returns a Processor using the given store handle and model.
func NewProcessor(db *gorm.DB, model ModelClient, logger zerolog.Logger, timeout time.Duration) *Processor {
	return &Processor{
		DB:      db,
		Model:   model,
		Logger:  logger.With().Str("component", "processor").Logger(),
		Timeout: timeout,
	}
}

// Trigger processes id in a new goroutine. The run is detached from ctx's
// cancellation but keeps its values (trace and request ids).
func (p *Processor) Trigger(ctx context.Context, id string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.Logger.Error().Str("submission_id", id).Interface("panic", r).Msg("processing panicked")
			}
		}()

		runCtx := context.WithoutCancel(ctx)
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, p.Timeout)
			defer cancel()
		}
		p.Process(runCtx, id)
	}()
}

// Wait blocks until every triggered run has returned or ctx is done.
func (p *Processor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process finalizes one submission. It never returns an error: every outcome
// is recorded on the row or in the log.
func (p *Processor) Process(ctx context.Context, id string) {
	tr := otel.Tracer("services/Processor")
	ctx, span := tr.Start(ctx, "Process", trace.WithAttributes(attribute.String("submission.id", id)))
	defer span.End()

	start := time.Now()
	log := p.Logger.With().Str("submission_id", id).Logger()

	sub, err := repo.GetSubmission(ctx, p.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn().Msg("submission not found; skipping")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load submission failed")
		span.RecordError(err)
		return
	}
	if sub.Status.IsTerminal() {
		log.Info().Str("status", string(sub.Status)).Msg("submission already processed; skipping")
		return
	}

	out, err := p.Model.Generate(ctx, sub.Review, sub.Rating)
	if err == nil && out == nil {
		err = errors.New("model returned no output")
	}
	if err == nil {
		err = repo.UpdateSubmission(ctx, p.DB, id,
			domain.Completed(out.UserAIResponse, out.AdminSummary, out.RecommendedActions))
		if err == nil {
			observeProcessed(domain.StatusCompleted, start)
			log.Info().Dur("took", time.Since(start)).Msg("submission completed")
			return
		}
		if errors.Is(err, repo.ErrInvalidTransition) {
			log.Warn().Msg("submission finalized concurrently; dropping result")
			return
		}
		err = fmt.Errorf("store result: %w", err)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "processing failed")
	log.Error().Err(err).Msg("processing failed")
	p.fail(ctx, log, id, err)
	observeProcessed(domain.StatusFailed, start)
}

// fail records err on the submission. Secondary failures are logged only.
func (p *Processor) fail(ctx context.Context, log zerolog.Logger, id string, cause error) {
	// The run's deadline may be what failed; give the bookkeeping its own.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	// Reload: the row may have changed while the model call was in flight.
	sub, err := repo.GetSubmission(ctx, p.DB, id)
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("reload before marking failed")
		return
	}
	if sub.Status.IsTerminal() {
		log.Warn().Str("status", string(sub.Status)).Msg("submission finalized concurrently; not marking failed")
		return
	}
	if err := repo.UpdateSubmission(ctx, p.DB, id, domain.Failed(cause.Error())); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("mark submission failed")
	}
}
