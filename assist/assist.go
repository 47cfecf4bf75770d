// Package assist orchestrates AI assistance requests: it builds an
// intent-specific instruction payload, invokes an external language-model
// capability with retries, and normalizes the raw output into a structured
// response. Requests share no mutable state and run fully in parallel.
package assist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidIntent is returned for an unrecognized intent value.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrCapabilityUnavailable is returned once retries are exhausted or the
	// call budget is exceeded. Never silently degraded.
	ErrCapabilityUnavailable = errors.New("assistant capability unavailable")
)

// Intent selects what the assistant should do with the code context.
type Intent string

const (
	IntentGenerateTests Intent = "generate_tests"
	IntentReview        Intent = "review"
	IntentSecurityScan  Intent = "security_scan"
	IntentOptimize      Intent = "optimize"
	IntentGenerateDocs  Intent = "generate_docs"
	IntentComplete      Intent = "complete"
)

// Selection narrows the request to a line range of the code context.
type Selection struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// Request is one assistance request. Stateless; not persisted beyond logs.
type Request struct {
	Intent    Intent     `json:"intent"`
	Code      string     `json:"code"`
	Language  string     `json:"language"`
	Prompt    string     `json:"prompt,omitempty"` // extra instruction, used by complete
	Selection *Selection `json:"selection,omitempty"`
}

// ResultKind tells the client how to interpret a response.
type ResultKind string

const (
	KindTestCode      ResultKind = "test_code"
	KindFindings      ResultKind = "findings"
	KindDiff          ResultKind = "diff"
	KindDocumentation ResultKind = "documentation"
	KindCompletion    ResultKind = "completion"
)

// ReviewFinding is one issue extracted from a review or security scan.
type ReviewFinding struct {
	Line     int    `json:"line"` // 0 when the model gave no location
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Response is the normalized result of an assistance request.
type Response struct {
	Intent      Intent          `json:"intent"`
	Kind        ResultKind      `json:"kind"`
	Text        string          `json:"text,omitempty"`
	Findings    []ReviewFinding `json:"findings,omitempty"`
	Diff        string          `json:"diff,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// Capability is the external language-model dependency. Its output is
// treated as untrusted free-form text and parsed defensively.
type Capability interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	Timeout time.Duration
	Retry   RetryConfig
}

func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second, Retry: DefaultRetryConfig()}
}

// Orchestrator dispatches requests to the capability. Safe for concurrent
// use.
type Orchestrator struct {
	capability Capability
	cfg        Config
	logger     zerolog.Logger
}

func NewOrchestrator(capability Capability, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		capability: capability,
		cfg:        cfg,
		logger:     logger.With().Str("component", "assist").Logger(),
	}
}

// Request runs one assistance request end to end. The caller may cancel via
// ctx; cancellation stops waiting but does not guarantee the capability call
// itself is aborted.
func (o *Orchestrator) Request(ctx context.Context, req Request) (*Response, error) {
	spec, ok := intents[req.Intent]
	if !ok {
		return nil, fmt.Errorf("%q: %w", req.Intent, ErrInvalidIntent)
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	instruction := spec.instruction(req)
	start := time.Now()

	var raw string
	attempts, err := retryWithBackoff(ctx, o.cfg.Retry, func() error {
		var callErr error
		raw, callErr = o.capability.Complete(ctx, instruction, req.Code)
		return callErr
	})
	if err != nil {
		o.logger.Warn().Err(err).
			Str("intent", string(req.Intent)).
			Int("attempts", attempts).
			Dur("elapsed", time.Since(start)).
			Msg("capability call failed")
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}

	o.logger.Debug().
		Str("intent", string(req.Intent)).
		Int("attempts", attempts).
		Dur("elapsed", time.Since(start)).
		Msg("capability call succeeded")

	return spec.normalize(req, raw), nil
}
