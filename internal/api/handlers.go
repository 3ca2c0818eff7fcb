package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/models"
)

// multipartOverhead is the body allowance above the document limit for
// boundaries, part headers and any text fields.
const multipartOverhead = 1 << 20

// TaskGateway dispatches validated tasks to the capability provider.
type TaskGateway interface {
	Chat(ctx context.Context, message, correlationID string) (*models.TaskResponse, error)
	Classify(ctx context.Context, doc *models.UploadedDocument, correlationID string) (*models.TaskResponse, error)
	GenerateCode(ctx context.Context, prompt, language, correlationID string) (*models.TaskResponse, error)
	FixBug(ctx context.Context, code, language, correlationID string) (*models.TaskResponse, error)
	GenerateTests(ctx context.Context, code, language, correlationID string) (*models.TaskResponse, error)
}

// Ingestor persists one uploaded document.
type Ingestor interface {
	Ingest(ctx context.Context, r io.Reader, originalName, declaredContentType string) (*models.UploadedDocument, error)
	MaxBytes() int64
}

// FeedbackCollector records and reports ratings.
type FeedbackCollector interface {
	Record(ctx context.Context, rating int, comment, messageID, feature string) (*models.Acknowledgement, error)
	List(ctx context.Context) ([]models.Feedback, error)
	ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error)
	Stats(ctx context.Context) (*models.FeedbackStats, error)
}

// Handler wires HTTP routes to the gateway, ingestion and feedback services.
type Handler struct {
	gateway  TaskGateway
	ingestor Ingestor
	feedback FeedbackCollector
	logger   *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(gw TaskGateway, ingestor Ingestor, fb FeedbackCollector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gateway: gw, ingestor: ingestor, feedback: fb, logger: logger}
}

// NewRouter returns a gin engine with middleware and every route attached.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(correlate(), recovery(h.logger), cors(), requestLog(h.logger))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.POST("/chat", h.chat)
	api.POST("/upload", h.uploadDocument("document"))
	api.POST("/feedback", h.submitFeedback)
	api.GET("/feedback", h.listFeedback)
	api.GET("/feedback/stats", h.feedbackStats)

	ai := api.Group("/ai")
	ai.POST("/upload-pdf", h.uploadDocument("file", "document"))
	ai.POST("/generate-code", h.generateCode)
	ai.POST("/fix-bug", h.fixBug)
	ai.POST("/generate-tests", h.generateTests)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Backend server is running"})
}

func (h *Handler) chat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request body"))
		return
	}
	resp, err := h.gateway.Chat(c.Request.Context(), req.Message, correlationID(c))
	if err != nil {
		h.writeError(c, err, "Failed to process chat message")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"response":  resp.Artifact.Text,
			"timestamp": resp.Timestamp,
		},
	})
}

// uploadDocument streams the first file part named by one of fields into
// ingestion and then classifies it.
func (h *Handler) uploadDocument(fields ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := h.ingestor.MaxBytes() + multipartOverhead
		if c.Request.ContentLength > limit {
			h.writeError(c, &apperr.PayloadTooLargeError{Limit: h.ingestor.MaxBytes()}, "")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		reader, err := c.Request.MultipartReader()
		if err != nil {
			c.JSON(http.StatusBadRequest, failure("No file uploaded"))
			return
		}
		doc, err := h.ingestPart(c.Request.Context(), reader, fields)
		if err != nil {
			h.writeError(c, err, "Failed to process document")
			return
		}

		resp, err := h.gateway.Classify(c.Request.Context(), doc, correlationID(c))
		if err != nil {
			h.writeError(c, err, "Failed to process document")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"filename":     filepath.Base(doc.StoragePath),
				"originalName": doc.OriginalName,
				"analysis":     resp.Artifact.Analysis,
			},
		})
	}
}

func (h *Handler) ingestPart(ctx context.Context, reader *multipart.Reader, fields []string) (*models.UploadedDocument, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation("document", "No file uploaded")
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, apperr.Validation("document", "No file uploaded")
		}
		if part.FileName() == "" || !slices.Contains(fields, part.FormName()) {
			part.Close()
			continue
		}
		defer part.Close()
		return h.ingestor.Ingest(ctx, part, part.FileName(), part.Header.Get("Content-Type"))
	}
}

type feedbackRequest struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	MessageID string `json:"messageId"`
	Feature   string `json:"feature"`
}

func (h *Handler) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request body"))
		return
	}
	ack, err := h.feedback.Record(c.Request.Context(), req.Rating, req.Comment, req.MessageID, req.Feature)
	if err != nil {
		h.writeError(c, err, "Failed to submit feedback")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": ack.Message,
		"data": gin.H{
			"id":         ack.ID,
			"receivedAt": ack.ReceivedAt,
		},
	})
}

func (h *Handler) listFeedback(c *gin.Context) {
	var (
		entries []models.Feedback
		err     error
	)
	if messageID, ok := c.GetQuery("messageId"); ok {
		entries, err = h.feedback.ListByMessageID(c.Request.Context(), messageID)
	} else {
		entries, err = h.feedback.List(c.Request.Context())
	}
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

func (h *Handler) feedbackStats(c *gin.Context) {
	stats, err := h.feedback.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

type codeRequest struct {
	Prompt   string `json:"prompt"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (h *Handler) generateCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request body"))
		return
	}
	resp, err := h.gateway.GenerateCode(c.Request.Context(), req.Prompt, req.Language, correlationID(c))
	if err != nil {
		h.writeError(c, err, "Failed to generate code")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"prompt":         req.Prompt,
		"language":       req.Language,
		"generated_code": resp.Artifact.Text,
		"timestamp":      resp.Timestamp.Format(time.RFC3339),
	})
}

func (h *Handler) fixBug(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request body"))
		return
	}
	resp, err := h.gateway.FixBug(c.Request.Context(), req.Code, req.Language, correlationID(c))
	if err != nil {
		h.writeError(c, err, "Failed to fix bugs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"original_code": req.Code,
		"language":      req.Language,
		"fixed_code":    resp.Artifact.Text,
		"timestamp":     resp.Timestamp.Format(time.RFC3339),
	})
}

func (h *Handler) generateTests(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("invalid request body"))
		return
	}
	resp, err := h.gateway.GenerateTests(c.Request.Context(), req.Code, req.Language, correlationID(c))
	if err != nil {
		h.writeError(c, err, "Failed to generate tests")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"original_code": req.Code,
		"language":      req.Language,
		"test_cases":    resp.Artifact.Text,
		"timestamp":     resp.Timestamp.Format(time.RFC3339),
	})
}
