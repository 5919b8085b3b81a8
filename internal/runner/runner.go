// Package runner is the execution façade: it validates the question,
// invokes the agent or the fast direct path, post-processes the raw
// answer and records the interaction.
package runner

import (
	"context"
	"errors"
	"strings"

	"research-agent/internal/answer"
	"research-agent/internal/history"
	"research-agent/internal/logger"
)

// Mode selects the execution path.
type Mode string

const (
	// ModeFull runs the web-search agent loop.
	ModeFull Mode = "full"
	// ModeFast prompts the model directly, without tools.
	ModeFast Mode = "fast"
)

// FailureKind tags what went wrong, so callers branch on kind instead of
// parsing message text.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureTimeout  FailureKind = "timeout"
	FailureUpstream FailureKind = "upstream"
	FailureStorage  FailureKind = "storage"
)

// ErrEmptyQuestion is returned before any external call when the
// question is empty after trimming. Presentation layers should check
// input themselves and treat this as a validation failure.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Result is the structured outcome of one question.
type Result struct {
	Answer     string
	Sources    []string
	Confidence float64
	Failure    FailureKind
}

// Engine is the reasoning dependency of the façade.
type Engine interface {
	// Process runs the full web-search loop.
	Process(ctx context.Context, question string) (string, error)
	// Direct is the fast single-shot path.
	Direct(ctx context.Context, question string) (string, error)
}

// Runner executes questions end-to-end.
type Runner struct {
	engine Engine
	store  history.Store
	// strict surfaces persistence failures on the result instead of
	// only logging them. The answer is kept either way.
	strict bool
}

// New creates a Runner. store may be nil to disable persistence.
func New(engine Engine, store history.Store, strict bool) *Runner {
	return &Runner{engine: engine, store: store, strict: strict}
}

// Run answers one question. Every failure except the empty-question
// validation is folded into the Result as a user-presentable message with
// zero confidence and no sources.
func (r *Runner) Run(ctx context.Context, question, userID string, mode Mode) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}

	var (
		raw string
		err error
	)
	if mode == ModeFast {
		raw, err = r.engine.Direct(ctx, question)
	} else {
		raw, err = r.engine.Process(ctx, question)
	}
	if err != nil {
		return failureResult(err), nil
	}

	res := Result{
		Answer:     raw,
		Sources:    answer.ExtractSources(raw),
		Confidence: answer.EstimateConfidence(raw),
	}

	if r.store != nil {
		if err := r.store.Append(history.Record{UserID: userID, Question: question, Answer: raw}); err != nil {
			logger.L.Error("failed to record interaction", "error", err, "user_id", userID)
			if r.strict {
				res.Failure = FailureStorage
			}
		}
	}
	return res, nil
}

// failureResult converts an engine error into the uniform failure shape:
// a readable answer, no sources, zero confidence. Nothing is persisted
// for failed runs.
func failureResult(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Result{
			Answer:  "The research agent timed out before producing an answer. Please try again.",
			Failure: FailureTimeout,
		}
	}
	return Result{
		Answer:  "The research agent could not answer this question: " + err.Error(),
		Failure: FailureUpstream,
	}
}
