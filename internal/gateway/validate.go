package gateway

import (
	"strings"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/lang"
	"smartsdlc/internal/models"
)

// Validate checks the payload fields required by req.Kind and returns the
// payload with its language normalised.
func Validate(req models.TaskRequest) (models.Payload, error) {
	p := req.Payload
	switch req.Kind {
	case models.KindChat:
		if strings.TrimSpace(p.Message) == "" {
			return p, apperr.Validation("message", "Message is required")
		}
	case models.KindClassify:
		if p.Document == nil || p.Document.StoragePath == "" {
			return p, apperr.Validation("document", "No file uploaded")
		}
	case models.KindGenerateCode:
		if strings.TrimSpace(p.Prompt) == "" {
			return p, apperr.Validation("prompt", "Prompt is required")
		}
		l, err := requireLanguage(p.Language)
		if err != nil {
			return p, err
		}
		p.Language = l
	case models.KindFixBug, models.KindGenerateTests:
		if strings.TrimSpace(p.Code) == "" {
			return p, apperr.Validation("code", "Code is required")
		}
		l, err := requireLanguage(p.Language)
		if err != nil {
			return p, err
		}
		p.Language = l
	default:
		return p, apperr.Validation("kind", "unknown task kind "+string(req.Kind))
	}
	return p, nil
}

func requireLanguage(language string) (string, error) {
	if strings.TrimSpace(language) == "" {
		return "", apperr.Validation("language", "Language is required")
	}
	l, ok := lang.Normalize(language)
	if !ok {
		return "", apperr.Validation("language", "unsupported language "+language)
	}
	return l, nil
}
