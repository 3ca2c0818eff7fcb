package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartsdlc/internal/lang"
	"smartsdlc/internal/models"
)

// MockProvider answers every capability with a fixed, input-derived reply.
// It stands in for a real model when no provider is configured.
type MockProvider struct {
	now func() time.Time
}

func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

func (m *MockProvider) Chat(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("AI Response to: %q. This is a mock response. Please integrate with your preferred AI service.", text), nil
}

func (m *MockProvider) AnalyzeDocument(ctx context.Context, doc *models.UploadedDocument) (*models.DocumentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document reference is nil")
	}
	return &models.DocumentAnalysis{
		Summary: fmt.Sprintf("This is a mock analysis of %s (%d bytes). Please integrate with your preferred document processing service.",
			doc.OriginalName, doc.SizeBytes),
		KeyPoints: []string{
			"Mock key point 1",
			"Mock key point 2",
			"Mock key point 3",
		},
		Timestamp: m.now().UTC(),
	}, nil
}

func (m *MockProvider) GenerateCode(ctx context.Context, prompt, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s mock %s implementation for: %s\n", lang.CommentPrefix(language), language, prompt), nil
}

func (m *MockProvider) FixBug(ctx context.Context, code, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s mock review: no changes applied\n%s", lang.CommentPrefix(language), code), nil
}

func (m *MockProvider) GenerateTests(ctx context.Context, code, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s mock %s test cases for %d lines of code\n", lang.CommentPrefix(language), language, lang.CountLines(code)), nil
}
