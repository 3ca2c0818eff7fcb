package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"smartsdlc/internal/client"
	"smartsdlc/internal/logging"
	"smartsdlc/internal/models"
)

var (
	submitLanguage string
	submitFile     string
	submitOutput   string
	submitBaseURL  string
)

var submitCmd = &cobra.Command{
	Use:   "submit <kind> [text]",
	Short: "Submit one task (chat, classify, generate-code, fix-bug, generate-tests)",
	Long: `submit sends one task to the gateway. If the gateway cannot answer, a
deterministic local simulation is returned and marked with provenance "simulated".

The task text is the second argument or the contents of --file. classify always
uploads --file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitLanguage, "language", "l", "python", "Language for code tasks")
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "Read the task input from this file")
	submitCmd.Flags().StringVarP(&submitOutput, "output", "o", "json", "Output format (json, yaml)")
	submitCmd.Flags().StringVar(&submitBaseURL, "url", "", "Gateway base URL (overrides client.base_url)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	kind, ok := models.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown task kind %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	baseURL := cfg.Client.BaseURL
	if submitBaseURL != "" {
		baseURL = submitBaseURL
	}
	c := client.New(baseURL, cfg.ClientTimeout(), logger)
	ctx := cmd.Context()

	var resp *models.TaskResponse
	if kind == models.KindClassify {
		if submitFile == "" {
			return fmt.Errorf("classify requires --file")
		}
		data, err := os.ReadFile(submitFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", submitFile, err)
		}
		resp, err = c.Classify(ctx, filepath.Base(submitFile), http.DetectContentType(data), data)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), resp)
	}

	text, err := taskInput(args)
	if err != nil {
		return err
	}
	switch kind {
	case models.KindChat:
		resp, err = c.Chat(ctx, text)
	case models.KindGenerateCode:
		resp, err = c.GenerateCode(ctx, text, submitLanguage)
	case models.KindFixBug:
		resp, err = c.FixBug(ctx, text, submitLanguage)
	case models.KindGenerateTests:
		resp, err = c.GenerateTests(ctx, text, submitLanguage)
	}
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), resp)
}

func taskInput(args []string) (string, error) {
	if submitFile != "" {
		data, err := os.ReadFile(submitFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", submitFile, err)
		}
		return string(data), nil
	}
	if len(args) < 2 {
		return "", fmt.Errorf("task text or --file is required")
	}
	return args[1], nil
}

func render(w io.Writer, resp *models.TaskResponse) error {
	switch strings.ToLower(submitOutput) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(toYAML(resp))
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return fmt.Errorf("unsupported output format %q", submitOutput)
	}
}

// toYAML round-trips through JSON so YAML output uses the same field names.
func toYAML(resp *models.TaskResponse) any {
	data, err := json.Marshal(resp)
	if err != nil {
		return resp
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return resp
	}
	return out
}
