package ai

import (
	"context"

	"smartsdlc/internal/models"
)

// Provider exposes the AI capabilities behind the task gateway. Every call is
// request/response and must honour the deadline carried by ctx.
type Provider interface {
	Chat(ctx context.Context, text string) (string, error)
	AnalyzeDocument(ctx context.Context, doc *models.UploadedDocument) (*models.DocumentAnalysis, error)
	GenerateCode(ctx context.Context, prompt, language string) (string, error)
	FixBug(ctx context.Context, code, language string) (string, error)
	GenerateTests(ctx context.Context, code, language string) (string, error)
}
