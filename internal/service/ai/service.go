package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"smartsdlc/internal/config"
	"smartsdlc/internal/models"
)

const defaultMaxTokens = 3000

// NewProvider builds the provider named in cfg. "mock" needs no credentials;
// openai, claude and gemini are backed by eino chat models.
func NewProvider(ctx context.Context, cfg config.ProviderConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" || name == "mock" {
		return NewMockProvider(), nil
	}
	chatModel, err := newChatModel(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	reader, err := NewFileDocumentReader(ctx)
	if err != nil {
		return nil, err
	}
	var agent *react.Agent
	if cfg.WebSearch {
		if tools := InitToolsChain(logger); len(tools) > 0 {
			agent, err = react.NewAgent(ctx, &react.AgentConfig{
				ToolCallingModel: chatModel,
				ToolsConfig: compose.ToolsNodeConfig{
					Tools: tools,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("init react agent: %w", err)
			}
		}
	}
	logger.Info("capability provider ready", "provider", name, "model", cfg.Model, "web_search", agent != nil)
	return newModelProvider(chatModel, agent, reader, logger), nil
}

func newChatModel(ctx context.Context, provider string, cfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api_key must be configured", provider)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	switch provider {
	case "openai":
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai model: %w", err)
		}
		return chatModel, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini model: %w", err)
		}
		return chatModel, nil
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init claude model: %w", err)
		}
		return chatModel, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// modelProvider implements Provider on top of an eino chat model. Chat goes
// through the react agent when tools are configured.
type modelProvider struct {
	chatModel model.ToolCallingChatModel
	agent     *react.Agent
	reader    DocumentReader
	logger    *slog.Logger
	now       func() time.Time
}

func newModelProvider(chatModel model.ToolCallingChatModel, agent *react.Agent, reader DocumentReader, logger *slog.Logger) *modelProvider {
	return &modelProvider{
		chatModel: chatModel,
		agent:     agent,
		reader:    reader,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *modelProvider) generate(ctx context.Context, messages []*schema.Message, useAgent bool) (string, error) {
	var (
		resp *schema.Message
		err  error
	)
	if useAgent && p.agent != nil {
		resp, err = p.agent.Generate(ctx, messages)
	} else {
		resp, err = p.chatModel.Generate(ctx, messages)
	}
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("model returned empty content")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (p *modelProvider) Chat(ctx context.Context, text string) (string, error) {
	return p.generate(ctx, chatMessages(text), true)
}

func (p *modelProvider) AnalyzeDocument(ctx context.Context, doc *models.UploadedDocument) (*models.DocumentAnalysis, error) {
	if doc == nil {
		return nil, errors.New("document reference is nil")
	}
	text, err := p.reader.ReadText(ctx, doc)
	if err != nil {
		return nil, err
	}
	reply, err := p.generate(ctx, analysisMessages(doc, text), false)
	if err != nil {
		return nil, err
	}
	summary, points := parseAnalysis(reply)
	if summary == "" {
		return nil, errors.New("model reply has no summary")
	}
	if len(points) == 0 {
		p.logger.Debug("analysis reply without key points", "document", doc.ID)
		points = []string{summary}
	}
	return &models.DocumentAnalysis{
		Summary:   summary,
		KeyPoints: points,
		Timestamp: p.now().UTC(),
	}, nil
}

func (p *modelProvider) GenerateCode(ctx context.Context, prompt, language string) (string, error) {
	return p.generate(ctx, codeMessages(prompt, language), false)
}

func (p *modelProvider) FixBug(ctx context.Context, code, language string) (string, error) {
	return p.generate(ctx, fixBugMessages(code, language), false)
}

func (p *modelProvider) GenerateTests(ctx context.Context, code, language string) (string, error) {
	return p.generate(ctx, testMessages(code, language), false)
}
