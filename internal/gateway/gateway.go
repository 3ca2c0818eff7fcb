// Package gateway validates task requests and dispatches them to the
// capability provider. It holds no per-request state between calls.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/models"
	"smartsdlc/internal/service/ai"
)

// Request lifecycle states, logged as the request moves through the gateway.
const (
	StateReceived           = "RECEIVED"
	StateValidating         = "VALIDATING"
	StateRejected           = "REJECTED"
	StateDispatching        = "DISPATCHING"
	StateResponded          = "RESPONDED"
	StateRespondedWithError = "RESPONDED_WITH_ERROR"
)

const DefaultTimeout = 30 * time.Second

var tracer = otel.Tracer("smartsdlc/gateway")

type Gateway struct {
	provider ai.Provider
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(provider ai.Provider, timeout time.Duration, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{provider: provider, timeout: timeout, logger: logger, now: time.Now}
}

// Submit validates req and performs exactly one provider call. Validation
// failures are returned as *apperr.ValidationError without contacting the
// provider; every provider failure comes back as *apperr.ProviderError.
func (g *Gateway) Submit(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	log := g.logger.With("kind", req.Kind, "correlation_id", req.CorrelationID)
	log.Debug("task state", "state", StateReceived)

	ctx, span := tracer.Start(ctx, "gateway.submit", trace.WithAttributes(
		attribute.String("task.kind", string(req.Kind)),
		attribute.String("task.correlation_id", req.CorrelationID),
	))
	defer span.End()

	log.Debug("task state", "state", StateValidating)
	payload, err := Validate(req)
	if err != nil {
		log.Info("task state", "state", StateRejected, "reason", err.Error())
		span.SetAttributes(attribute.String("task.state", StateRejected))
		return nil, err
	}

	log.Debug("task state", "state", StateDispatching)
	start := g.now()
	artifact, err := g.dispatch(ai.WithCorrelationID(ctx, req.CorrelationID), req.Kind, payload)
	if err != nil {
		log.Error("task state", "state", StateRespondedWithError, "error", err, "elapsed", time.Since(start))
		span.SetAttributes(attribute.String("task.state", StateRespondedWithError))
		span.SetStatus(codes.Error, "provider error")
		return nil, err
	}

	log.Info("task state", "state", StateResponded, "elapsed", time.Since(start))
	span.SetAttributes(attribute.String("task.state", StateResponded))
	return &models.TaskResponse{
		Success:       true,
		Artifact:      artifact,
		Provenance:    models.ProvenanceLive,
		Timestamp:     g.now().UTC(),
		CorrelationID: req.CorrelationID,
	}, nil
}

type outcome struct {
	artifact models.Artifact
	err      error
}

// dispatch runs the provider call under the gateway deadline. The call runs
// in its own goroutine so a provider that ignores ctx cannot hold the caller
// past the deadline.
func (g *Gateway) dispatch(ctx context.Context, kind models.Kind, p models.Payload) (models.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		a, err := g.call(ctx, kind, p)
		done <- outcome{artifact: a, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: ctx.Err()}
	}
	if res.err == nil && res.artifact.Empty() {
		res.err = errors.New("provider returned an empty artifact")
	}
	if res.err != nil {
		return models.Artifact{}, &apperr.ProviderError{Op: string(kind), Err: res.err}
	}
	return res.artifact, nil
}

func (g *Gateway) call(ctx context.Context, kind models.Kind, p models.Payload) (models.Artifact, error) {
	switch kind {
	case models.KindChat:
		text, err := g.provider.Chat(ctx, p.Message)
		return models.Artifact{Text: text}, err
	case models.KindClassify:
		analysis, err := g.provider.AnalyzeDocument(ctx, p.Document)
		if err != nil {
			return models.Artifact{}, err
		}
		if analysis == nil {
			return models.Artifact{}, errors.New("provider returned no analysis")
		}
		if analysis.Timestamp.IsZero() {
			analysis.Timestamp = g.now().UTC()
		}
		return models.Artifact{Analysis: analysis}, nil
	case models.KindGenerateCode:
		code, err := g.provider.GenerateCode(ctx, p.Prompt, p.Language)
		return models.Artifact{Text: code}, err
	case models.KindFixBug:
		code, err := g.provider.FixBug(ctx, p.Code, p.Language)
		return models.Artifact{Text: code}, err
	case models.KindGenerateTests:
		tests, err := g.provider.GenerateTests(ctx, p.Code, p.Language)
		return models.Artifact{Text: tests}, err
	default:
		return models.Artifact{}, fmt.Errorf("unknown task kind %s", kind)
	}
}

func (g *Gateway) Chat(ctx context.Context, message, correlationID string) (*models.TaskResponse, error) {
	return g.Submit(ctx, models.TaskRequest{Kind: models.KindChat, Payload: models.Payload{Message: message}, CorrelationID: correlationID})
}

func (g *Gateway) Classify(ctx context.Context, doc *models.UploadedDocument, correlationID string) (*models.TaskResponse, error) {
	return g.Submit(ctx, models.TaskRequest{Kind: models.KindClassify, Payload: models.Payload{Document: doc}, CorrelationID: correlationID})
}

func (g *Gateway) GenerateCode(ctx context.Context, prompt, language, correlationID string) (*models.TaskResponse, error) {
	return g.Submit(ctx, models.TaskRequest{Kind: models.KindGenerateCode, Payload: models.Payload{Prompt: prompt, Language: language}, CorrelationID: correlationID})
}

func (g *Gateway) FixBug(ctx context.Context, code, language, correlationID string) (*models.TaskResponse, error) {
	return g.Submit(ctx, models.TaskRequest{Kind: models.KindFixBug, Payload: models.Payload{Code: code, Language: language}, CorrelationID: correlationID})
}

func (g *Gateway) GenerateTests(ctx context.Context, code, language, correlationID string) (*models.TaskResponse, error) {
	return g.Submit(ctx, models.TaskRequest{Kind: models.KindGenerateTests, Payload: models.Payload{Code: code, Language: language}, CorrelationID: correlationID})
}
