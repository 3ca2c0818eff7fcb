package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"smartsdlc/internal/models"
)

// DocumentReader turns a stored upload into plain text for the model.
type DocumentReader interface {
	ReadText(ctx context.Context, doc *models.UploadedDocument) (string, error)
}

// FileDocumentReader loads stored uploads through the eino file loader.
type FileDocumentReader struct {
	loader *file.FileLoader
}

// NewFileDocumentReader extracts text from .pdf files with the eino pdf parser
// and reads anything else as plain text.
func NewFileDocumentReader(ctx context.Context) (*FileDocumentReader, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        map[string]parser.Parser{".pdf": pdfParser},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init document loader: %w", err)
	}
	return &FileDocumentReader{loader: loader}, nil
}

func (r *FileDocumentReader) ReadText(ctx context.Context, doc *models.UploadedDocument) (string, error) {
	if doc == nil || doc.StoragePath == "" {
		return "", errors.New("document reference is empty")
	}
	docs, err := r.loader.Load(ctx, document.Source{URI: doc.StoragePath})
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	var builder strings.Builder
	for _, d := range docs {
		content := strings.TrimSpace(d.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("document has no readable text content")
	}
	return cleanText(text), nil
}

// cleanText drops very short lines and joins the rest, which removes most
// page furniture from extracted text.
func cleanText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 3 {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
