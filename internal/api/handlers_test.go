package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"smartsdlc/internal/feedback"
	"smartsdlc/internal/gateway"
	"smartsdlc/internal/ingest"
	"smartsdlc/internal/logging"
	"smartsdlc/internal/models"
	"smartsdlc/internal/service/ai"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n")

type testServer struct {
	router    *gin.Engine
	uploadDir string
}

func newTestServer(t *testing.T, provider ai.Provider, maxBytes int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.Discard()
	dir := t.TempDir()
	store, err := ingest.NewFSStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ingestor := ingest.New(store, ingest.Options{MaxBytes: maxBytes, MaxConcurrent: 4}, logger)
	gw := gateway.New(provider, time.Second, logger)
	collector := feedback.NewCollector(feedback.NewMemoryStore(), logger)

	handler := NewHandler(gw, ingestor, collector, logger)
	return &testServer{router: NewRouter(handler), uploadDir: dir}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doJSONRequest(t, srv.router, http.MethodGet, "/api/health", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Status != "OK" || body.Message == "" {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestChatEchoesMessage(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	before := time.Now().Add(-time.Second)
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/chat", map[string]string{"message": "hello"}, nil)
	assertStatus(t, resp, http.StatusOK)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Response  string    `json:"response"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"data"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if !body.Success || !strings.Contains(body.Data.Response, "hello") {
		t.Fatalf("unexpected chat body %s", resp.Body.String())
	}
	if body.Data.Timestamp.Before(before) {
		t.Fatalf("timestamp %v earlier than request", body.Data.Timestamp)
	}
	if resp.Header().Get(correlationHeader) == "" {
		t.Fatalf("expected correlation id header")
	}
}

func TestChatRequiresMessage(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/chat", map[string]string{"message": ""},
		map[string]string{correlationHeader: "req-42"})
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, resp, "Message is required")
	if got := resp.Header().Get(correlationHeader); got != "req-42" {
		t.Fatalf("correlation id not echoed, got %q", got)
	}
}

func TestChatProviderFailureHidesDetail(t *testing.T) {
	srv := newTestServer(t, failingProvider{}, 0)
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/chat", map[string]string{"message": "hi"}, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	assertError(t, resp, "Failed to process chat message")
	if strings.Contains(resp.Body.String(), "upstream secret") {
		t.Fatalf("provider detail leaked: %s", resp.Body.String())
	}
}

func TestUploadPDF(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doMultipart(t, srv.router, "/api/upload", "document", "design.pdf", "application/pdf", samplePDF)
	assertStatus(t, resp, http.StatusOK)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Filename     string                  `json:"filename"`
			OriginalName string                  `json:"originalName"`
			Analysis     models.DocumentAnalysis `json:"analysis"`
		} `json:"data"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if !body.Success || body.Data.OriginalName != "design.pdf" {
		t.Fatalf("unexpected upload body %s", resp.Body.String())
	}
	if body.Data.Filename == "design.pdf" || !strings.HasSuffix(body.Data.Filename, ".pdf") {
		t.Fatalf("storage key should not be the original name, got %q", body.Data.Filename)
	}
	if len(body.Data.Analysis.KeyPoints) == 0 || body.Data.Analysis.Summary == "" {
		t.Fatalf("expected analysis with key points, got %+v", body.Data.Analysis)
	}
	if n := countUploads(t, srv.uploadDir); n != 1 {
		t.Fatalf("expected 1 stored upload, got %d", n)
	}
}

func TestUploadPDFAcceptsFileField(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doMultipart(t, srv.router, "/api/ai/upload-pdf", "file", "req.pdf", "application/pdf", samplePDF)
	assertStatus(t, resp, http.StatusOK)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doMultipart(t, srv.router, "/api/upload", "document", "notes.txt", "text/plain", []byte("just some notes"))
	assertStatus(t, resp, http.StatusBadRequest)

	// a text file declared as pdf fails the content sniff
	resp = doMultipart(t, srv.router, "/api/upload", "document", "fake.pdf", "application/pdf", []byte("plain text body"))
	assertStatus(t, resp, http.StatusBadRequest)

	if n := countUploads(t, srv.uploadDir); n != 0 {
		t.Fatalf("expected no stored uploads, got %d", n)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no file here")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)
	assertError(t, rec, "No file uploaded")

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/upload", map[string]string{"document": "x"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 1024)
	big := append(append([]byte{}, samplePDF...), bytes.Repeat([]byte("0"), 4096)...)
	resp := doMultipart(t, srv.router, "/api/upload", "document", "big.pdf", "application/pdf", big)
	assertStatus(t, resp, http.StatusRequestEntityTooLarge)
	if n := countUploads(t, srv.uploadDir); n != 0 {
		t.Fatalf("partial upload left behind: %d files", n)
	}
}

func TestUploadRejectsOversizedContentLength(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 1024)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.ContentLength = 10 << 20
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusRequestEntityTooLarge)
}

func TestFeedbackFlow(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)

	for _, rating := range []int{0, 6} {
		resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/feedback",
			map[string]any{"rating": rating, "comment": "x", "messageId": "m-1"}, nil)
		assertStatus(t, resp, http.StatusBadRequest)
	}

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/feedback",
		map[string]any{"rating": 4, "comment": "useful", "messageId": "m-1", "feature": "chat"}, nil)
	assertStatus(t, resp, http.StatusOK)
	var ack struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeJSON(t, resp.Body.Bytes(), &ack)
	if !ack.Success || ack.Message == "" || ack.Data.ID == "" {
		t.Fatalf("unexpected feedback ack %s", resp.Body.String())
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/api/feedback?messageId=m-1", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var list struct {
		Data []models.Feedback `json:"data"`
	}
	decodeJSON(t, resp.Body.Bytes(), &list)
	if len(list.Data) != 1 || list.Data[0].Rating != 4 {
		t.Fatalf("expected exactly one stored feedback, got %+v", list.Data)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/api/feedback/stats", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var stats struct {
		Data models.FeedbackStats `json:"data"`
	}
	decodeJSON(t, resp.Body.Bytes(), &stats)
	if stats.Data.Total != 1 || stats.Data.Features["chat"].Count != 1 {
		t.Fatalf("unexpected stats %+v", stats.Data)
	}
}

func TestFeedbackRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/feedback", map[string]any{"rating": "five"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestCodeRoutes(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	cases := []struct {
		path  string
		body  map[string]string
		field string
	}{
		{"/api/ai/generate-code", map[string]string{"prompt": "reverse a string", "language": "python"}, "generated_code"},
		{"/api/ai/fix-bug", map[string]string{"code": "print(1", "language": "python"}, "fixed_code"},
		{"/api/ai/generate-tests", map[string]string{"code": "def add(a, b): return a + b", "language": "py"}, "test_cases"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp := doJSONRequest(t, srv.router, http.MethodPost, tc.path, tc.body, nil)
			assertStatus(t, resp, http.StatusOK)
			var body map[string]any
			decodeJSON(t, resp.Body.Bytes(), &body)
			if body["success"] != true {
				t.Fatalf("expected success, got %s", resp.Body.String())
			}
			if s, _ := body[tc.field].(string); s == "" {
				t.Fatalf("expected %s in %s", tc.field, resp.Body.String())
			}
			if _, err := time.Parse(time.RFC3339, fmt.Sprint(body["timestamp"])); err != nil {
				t.Fatalf("invalid timestamp: %v", err)
			}
		})
	}
}

func TestCodeRoutesValidation(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/api/ai/generate-code", map[string]string{"prompt": "x"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, resp, "Language is required")

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/api/ai/fix-bug", map[string]string{"code": "x", "language": "cobol"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, resp, "unsupported language cobol")

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/api/ai/generate-tests", map[string]string{"language": "go"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	assertError(t, resp, "Code is required")
}

func TestRecoveryReturnsGenericError(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	srv.router.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	resp := doJSONRequest(t, srv.router, http.MethodGet, "/boom", nil, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	assertError(t, resp, "Something went wrong!")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, ai.NewMockProvider(), 0)
	resp := doJSONRequest(t, srv.router, http.MethodOptions, "/api/chat", nil, map[string]string{"Origin": "http://localhost:5173"})
	assertStatus(t, resp, http.StatusNoContent)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

type failingProvider struct{}

var errUpstream = errors.New("upstream secret: 401 invalid key sk-123")

func (failingProvider) Chat(context.Context, string) (string, error) { return "", errUpstream }
func (failingProvider) AnalyzeDocument(context.Context, *models.UploadedDocument) (*models.DocumentAnalysis, error) {
	return nil, errUpstream
}
func (failingProvider) GenerateCode(context.Context, string, string) (string, error) {
	return "", errUpstream
}
func (failingProvider) FixBug(context.Context, string, string) (string, error) { return "", errUpstream }
func (failingProvider) GenerateTests(context.Context, string, string) (string, error) {
	return "", errUpstream
}

type brokenFeedback struct{}

func (brokenFeedback) Record(context.Context, int, string, string, string) (*models.Acknowledgement, error) {
	return nil, errors.New("disk full")
}

func (brokenFeedback) List(context.Context) ([]models.Feedback, error) {
	return nil, errors.New("disk full")
}

func (brokenFeedback) ListByMessageID(context.Context, string) ([]models.Feedback, error) {
	return nil, errors.New("disk full")
}

func (brokenFeedback) Stats(context.Context) (*models.FeedbackStats, error) {
	return nil, errors.New("disk full")
}

func TestUnexpectedErrorIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logging.Discard()
	store, err := ingest.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	handler := NewHandler(gateway.New(ai.NewMockProvider(), time.Second, logger),
		ingest.New(store, ingest.Options{}, logger), brokenFeedback{}, logger)
	router := NewRouter(handler)

	resp := doJSONRequest(t, router, http.MethodGet, "/api/feedback/stats", nil, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	assertError(t, resp, "Something went wrong!")
	if strings.Contains(resp.Body.String(), "disk full") {
		t.Fatalf("internal error leaked: %s", resp.Body.String())
	}
}

func TestPanicLogCarriesCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	store, err := ingest.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	handler := NewHandler(gateway.New(ai.NewMockProvider(), time.Second, logger),
		ingest.New(store, ingest.Options{}, logger),
		feedback.NewCollector(feedback.NewMemoryStore(), logger), logger)
	router := NewRouter(handler)
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	resp := doJSONRequest(t, router, http.MethodGet, "/boom", nil, map[string]string{"X-Correlation-ID": "req-9"})
	assertStatus(t, resp, http.StatusInternalServerError)
	assertError(t, resp, "Something went wrong!")

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["msg"] == "panic recovered" {
			found = true
			if entry["correlation_id"] != "req-9" {
				t.Fatalf("panic log correlation_id = %v, want req-9", entry["correlation_id"])
			}
		}
	}
	if !found {
		t.Fatalf("no panic log in %s", logs.String())
	}
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doMultipart(t *testing.T, router *gin.Engine, path, field, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body.Success || body.Error != want {
		t.Fatalf("unexpected error body %s, want error %q", rec.Body.String(), want)
	}
}

func countUploads(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	return len(entries)
}
