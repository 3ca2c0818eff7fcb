package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/gateway"
	"smartsdlc/internal/models"
	"smartsdlc/internal/service/ai"
)

const maxResponseBytes = 4 << 20

// Client calls the gateway over HTTP and falls back to a Simulator when the
// live call fails.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	sim     Simulator
	logger  *slog.Logger
}

// New builds a client for the gateway at baseURL. timeout bounds each live
// attempt.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

// WithHTTPClient replaces the underlying transport.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) Chat(ctx context.Context, message string) (*models.TaskResponse, error) {
	p, err := gateway.Validate(models.TaskRequest{Kind: models.KindChat, Payload: models.Payload{Message: message}})
	if err != nil {
		return nil, err
	}
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (string, error) {
		var body struct {
			Data struct {
				Response string `json:"response"`
			} `json:"data"`
		}
		if err := c.postJSON(ctx, "/api/chat", map[string]string{"message": p.Message}, &body); err != nil {
			return "", err
		}
		return nonEmpty(body.Data.Response)
	}, func() string { return c.sim.Chat(p.Message) })
	if err != nil {
		return nil, err
	}
	return c.textResponse(models.KindChat, res), nil
}

// Classify uploads data as a document and returns its analysis.
func (c *Client) Classify(ctx context.Context, name, contentType string, data []byte) (*models.TaskResponse, error) {
	if name == "" || len(data) == 0 {
		return nil, apperr.Validation("document", "No file uploaded")
	}
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (*models.DocumentAnalysis, error) {
		return c.upload(ctx, name, contentType, data)
	}, func() *models.DocumentAnalysis { return c.sim.Classify(name, data) })
	if err != nil {
		return nil, err
	}
	c.report(models.KindClassify, res.LiveErr)
	return &models.TaskResponse{
		Success:    true,
		Artifact:   models.Artifact{Analysis: res.Value},
		Provenance: res.Provenance,
		Timestamp:  res.Timestamp,
	}, nil
}

func (c *Client) GenerateCode(ctx context.Context, prompt, language string) (*models.TaskResponse, error) {
	p, err := gateway.Validate(models.TaskRequest{Kind: models.KindGenerateCode, Payload: models.Payload{Prompt: prompt, Language: language}})
	if err != nil {
		return nil, err
	}
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (string, error) {
		var body struct {
			Code string `json:"generated_code"`
		}
		if err := c.postJSON(ctx, "/api/ai/generate-code", map[string]string{"prompt": p.Prompt, "language": p.Language}, &body); err != nil {
			return "", err
		}
		return nonEmpty(body.Code)
	}, func() string { return c.sim.GenerateCode(p.Prompt, p.Language) })
	if err != nil {
		return nil, err
	}
	return c.textResponse(models.KindGenerateCode, res), nil
}

func (c *Client) FixBug(ctx context.Context, code, language string) (*models.TaskResponse, error) {
	p, err := gateway.Validate(models.TaskRequest{Kind: models.KindFixBug, Payload: models.Payload{Code: code, Language: language}})
	if err != nil {
		return nil, err
	}
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (string, error) {
		var body struct {
			Fixed string `json:"fixed_code"`
		}
		if err := c.postJSON(ctx, "/api/ai/fix-bug", map[string]string{"code": p.Code, "language": p.Language}, &body); err != nil {
			return "", err
		}
		return nonEmpty(body.Fixed)
	}, func() string { return c.sim.FixBug(p.Code, p.Language) })
	if err != nil {
		return nil, err
	}
	return c.textResponse(models.KindFixBug, res), nil
}

func (c *Client) GenerateTests(ctx context.Context, code, language string) (*models.TaskResponse, error) {
	p, err := gateway.Validate(models.TaskRequest{Kind: models.KindGenerateTests, Payload: models.Payload{Code: code, Language: language}})
	if err != nil {
		return nil, err
	}
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (string, error) {
		var body struct {
			Tests string `json:"test_cases"`
		}
		if err := c.postJSON(ctx, "/api/ai/generate-tests", map[string]string{"code": p.Code, "language": p.Language}, &body); err != nil {
			return "", err
		}
		return nonEmpty(body.Tests)
	}, func() string { return c.sim.GenerateTests(p.Code, p.Language) })
	if err != nil {
		return nil, err
	}
	return c.textResponse(models.KindGenerateTests, res), nil
}

// SubmitFeedback records a rating. It is never simulated.
func (c *Client) SubmitFeedback(ctx context.Context, rating int, comment, messageID, feature string) (*models.Acknowledgement, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, apperr.Validation("rating", fmt.Sprintf("Rating must be between %d and %d", models.MinRating, models.MaxRating))
	}
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (*models.Acknowledgement, error) {
		var body struct {
			Message string `json:"message"`
			Data    struct {
				ID         string    `json:"id"`
				ReceivedAt time.Time `json:"receivedAt"`
			} `json:"data"`
		}
		req := map[string]any{"rating": rating, "comment": comment, "messageId": messageID, "feature": feature}
		if err := c.postJSON(ctx, "/api/feedback", req, &body); err != nil {
			return nil, err
		}
		return &models.Acknowledgement{ID: body.Data.ID, Message: body.Message, ReceivedAt: body.Data.ReceivedAt}, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Health returns the gateway status string. It is never simulated.
func (c *Client) Health(ctx context.Context) (string, error) {
	res, err := Invoke(ctx, c.timeout, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
		if err != nil {
			return "", err
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := c.do(req, &body); err != nil {
			return "", err
		}
		return nonEmpty(body.Status)
	}, nil)
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

func (c *Client) textResponse(kind models.Kind, res Result[string]) *models.TaskResponse {
	c.report(kind, res.LiveErr)
	return &models.TaskResponse{
		Success:    true,
		Artifact:   models.Artifact{Text: res.Value},
		Provenance: res.Provenance,
		Timestamp:  res.Timestamp,
	}
}

func (c *Client) report(kind models.Kind, liveErr error) {
	if liveErr != nil {
		c.logger.Warn("live call failed, using simulated result", "kind", kind, "error", liveErr)
	}
}

func (c *Client) upload(ctx context.Context, name, contentType string, data []byte) (*models.DocumentAnalysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var body struct {
		Data struct {
			Analysis *models.DocumentAnalysis `json:"analysis"`
		} `json:"data"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, err
	}
	if body.Data.Analysis == nil || body.Data.Analysis.Summary == "" {
		return nil, fmt.Errorf("%w: empty analysis", ErrRemoteFailure)
	}
	return body.Data.Analysis, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req and decodes the JSON body into out. A 400 becomes a
// ValidationError, other non-2xx statuses a StatusError, and a body with
// success:false ErrRemoteFailure.
func (c *Client) do(req *http.Request, out any) error {
	if id := ai.CorrelationIDFromContext(req.Context()); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(data, &env)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return apperr.Validation("", msg)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Message: env.Error}
	case env.Success != nil && !*env.Success:
		return fmt.Errorf("%w: %s", ErrRemoteFailure, env.Error)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func nonEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: empty artifact", ErrRemoteFailure)
	}
	return s, nil
}
