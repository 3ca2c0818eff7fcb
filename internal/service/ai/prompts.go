package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"smartsdlc/internal/models"
)

const systemPrompt = "You are an assistant specialised in the software development lifecycle (SDLC). " +
	"Answer accurately and concisely."

// maxDocumentRunes bounds how much extracted document text is sent to the model.
const maxDocumentRunes = 12000

func chatMessages(text string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(text),
	}
}

func analysisMessages(doc *models.UploadedDocument, text string) []*schema.Message {
	runes := []rune(text)
	if len(runes) > maxDocumentRunes {
		text = string(runes[:maxDocumentRunes])
	}
	prompt := fmt.Sprintf("Analyze the document %q and classify its content into SDLC phases "+
		"(Requirements, Design, Development, Testing, Deployment, Maintenance).\n"+
		"Reply with JSON only: {\"summary\": string, \"keyPoints\": [string]}.\n\nDocument:\n%s",
		doc.OriginalName, text)
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	}
}

func codeMessages(prompt, language string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Generate clean, production-ready %s code for the following requirement. "+
			"Reply with the code only, commented where useful.\n\nRequirement: %s", language, prompt)),
	}
}

func fixBugMessages(code, language string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Find and fix the bugs in the following %s code. "+
			"Reply with the corrected code, then a short list of what was changed.\n\nCode:\n%s", language, code)),
	}
}

func testMessages(code, language string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Write comprehensive unit tests for the following %s code "+
			"using the customary test framework for the language.\n\nCode:\n%s", language, code)),
	}
}

// parseAnalysis extracts the JSON object from a model reply. Replies that are
// not JSON become a summary with bullet lines as key points.
func parseAnalysis(reply string) (string, []string) {
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		var parsed struct {
			Summary   string   `json:"summary"`
			KeyPoints []string `json:"keyPoints"`
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err == nil && parsed.Summary != "" {
			return parsed.Summary, compact(parsed.KeyPoints)
		}
	}

	var summary []string
	var points []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			points = append(points, strings.TrimSpace(line[2:]))
		default:
			summary = append(summary, line)
		}
	}
	return strings.Join(summary, " "), points
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
