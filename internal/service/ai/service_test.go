package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsdlc/internal/config"
	"smartsdlc/internal/logging"
	"smartsdlc/internal/models"
)

type fakeChatModel struct {
	reply string
	err   error
	calls int
	last  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

type staticReader struct {
	text string
	err  error
}

func (r staticReader) ReadText(context.Context, *models.UploadedDocument) (string, error) {
	return r.text, r.err
}

func TestModelProviderChatSendsSystemAndUserMessages(t *testing.T) {
	fake := &fakeChatModel{reply: "  Use a feature branch.  "}
	p := newModelProvider(fake, nil, staticReader{}, logging.Discard())

	got, err := p.Chat(context.Background(), "how should I branch?")
	require.NoError(t, err)
	assert.Equal(t, "Use a feature branch.", got)
	require.Len(t, fake.last, 2)
	assert.Equal(t, schema.System, fake.last[0].Role)
	assert.Equal(t, "how should I branch?", fake.last[1].Content)
}

func TestModelProviderRejectsEmptyReply(t *testing.T) {
	p := newModelProvider(&fakeChatModel{reply: "   "}, nil, staticReader{}, logging.Discard())
	_, err := p.GenerateCode(context.Background(), "sort a list", "go")
	require.Error(t, err)
}

func TestModelProviderPropagatesModelError(t *testing.T) {
	p := newModelProvider(&fakeChatModel{err: errors.New("quota")}, nil, staticReader{}, logging.Discard())
	_, err := p.FixBug(context.Background(), "x = 1", "python")
	require.ErrorContains(t, err, "quota")
}

func TestModelProviderAnalyzeDocumentParsesJSON(t *testing.T) {
	fake := &fakeChatModel{reply: "```json\n{\"summary\":\"Requirements heavy\",\"keyPoints\":[\"Requirements: login\",\" \",\"Testing: e2e\"]}\n```"}
	p := newModelProvider(fake, nil, staticReader{text: "The system shall allow login."}, logging.Discard())

	got, err := p.AnalyzeDocument(context.Background(), &models.UploadedDocument{ID: "d1", OriginalName: "srs.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Requirements heavy", got.Summary)
	assert.Equal(t, []string{"Requirements: login", "Testing: e2e"}, got.KeyPoints)
	assert.False(t, got.Timestamp.IsZero())
	assert.Contains(t, fake.last[1].Content, "The system shall allow login.")
}

func TestModelProviderAnalyzeDocumentReaderFailure(t *testing.T) {
	fake := &fakeChatModel{reply: "unused"}
	p := newModelProvider(fake, nil, staticReader{err: errors.New("unreadable")}, logging.Discard())
	_, err := p.AnalyzeDocument(context.Background(), &models.UploadedDocument{ID: "d1"})
	require.ErrorContains(t, err, "unreadable")
	assert.Zero(t, fake.calls)
}

func TestParseAnalysisFallsBackToBullets(t *testing.T) {
	summary, points := parseAnalysis("Mostly design notes.\n- Design: module layout\n* Deployment: docker\n")
	assert.Equal(t, "Mostly design notes.", summary)
	assert.Equal(t, []string{"Design: module layout", "Deployment: docker"}, points)
}

func TestAnalysisMessagesTruncatesLongDocuments(t *testing.T) {
	long := strings.Repeat("a", maxDocumentRunes+500)
	msgs := analysisMessages(&models.UploadedDocument{OriginalName: "big.pdf"}, long)
	assert.Less(t, len(msgs[1].Content), maxDocumentRunes+400)
}

func TestNewProviderMockAndValidation(t *testing.T) {
	p, err := NewProvider(context.Background(), config.ProviderConfig{Name: "mock"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, p)

	_, err = NewProvider(context.Background(), config.ProviderConfig{Name: "openai"}, logging.Discard())
	require.ErrorContains(t, err, "api_key")

	_, err = NewProvider(context.Background(), config.ProviderConfig{Name: "watsonx", APIKey: "k"}, logging.Discard())
	require.ErrorContains(t, err, "invalid provider")
}

func TestFileDocumentReaderLoadsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Requirements gathering\nok\nDesign review scheduled\n"), 0o644))
	reader, err := NewFileDocumentReader(context.Background())
	require.NoError(t, err)

	text, err := reader.ReadText(context.Background(), &models.UploadedDocument{StoragePath: path})
	require.NoError(t, err)
	assert.Equal(t, "Requirements gathering Design review scheduled", text)

	_, err = reader.ReadText(context.Background(), &models.UploadedDocument{})
	require.Error(t, err)
}

func TestFileDocumentReaderExtractsPDFText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.pdf")
	require.NoError(t, os.WriteFile(path, onePagePDF("Requirements Analysis Phase"), 0o644))
	reader, err := NewFileDocumentReader(context.Background())
	require.NoError(t, err)

	text, err := reader.ReadText(context.Background(), &models.UploadedDocument{StoragePath: path})
	require.NoError(t, err)
	assert.Contains(t, text, "Requirements")
	assert.NotContains(t, text, "%PDF")
	assert.NotContains(t, text, "obj")
}

// onePagePDF builds a minimal well-formed PDF whose single page shows text.
func onePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestToolRateLimiter(t *testing.T) {
	l := newToolRateLimiter(2, WebSearchRateWindow)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	assert.True(t, l.Allow("other"))
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", CorrelationIDFromContext(ctx))
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}
