package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mosaiko-ai/factcheck-gateway/internal/config"
	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/testutil"
)

func testWebhooks(base string) config.WebhookConfig {
	return config.WebhookConfig{
		Modulo1: map[string]string{
			"texto": base + "/webhook/modulo1-texto",
		},
		Stages: map[string]string{
			"modulo2": base + "/webhook/modulo2",
			"modulo3": base + "/webhook/modulo3",
			"modulo4": base + "/webhook/modulo4",
		},
	}
}

func errType(t *testing.T, err error) domain.ErrorType {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	return apiErr.Type
}

func TestResolveURL(t *testing.T) {
	c := New(testWebhooks("https://example.com"))

	url, err := c.ResolveURL("texto", domain.StageModulo1)
	if err != nil {
		t.Fatalf("ResolveURL(texto, modulo1) error = %v", err)
	}
	if url != "https://example.com/webhook/modulo1-texto" {
		t.Fatalf("unexpected url: %s", url)
	}

	if _, err := c.ResolveURL("video", domain.StageModulo1); errType(t, err) != domain.ErrorTypeInvalidInput {
		t.Fatal("unsupported media type must be invalid_input")
	}

	url, err = c.ResolveURL("texto", domain.StageModulo3)
	if err != nil {
		t.Fatalf("ResolveURL(modulo3) error = %v", err)
	}
	if url != "https://example.com/webhook/modulo3" {
		t.Fatalf("unexpected url: %s", url)
	}

	if _, err := c.ResolveURL("texto", domain.Stage("modulo9")); errType(t, err) != domain.ErrorTypeInvalidInput {
		t.Fatal("unknown stage must be invalid_input")
	}
}

func TestSendJSON(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"claims":["Terra é plana"]}`))
	}))
	defer srv.Close()

	c := New(testWebhooks(srv.URL))
	result, err := c.SendJSON(context.Background(), srv.URL, map[string]string{"texto": "Terra é plana"})
	if err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}
	if received["texto"] != "Terra é plana" {
		t.Fatalf("webhook received %v", received)
	}
	if string(result) != `{"claims":["Terra é plana"]}` {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestSendJSONRemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow not active", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(testWebhooks(srv.URL))
	_, err := c.SendJSON(context.Background(), srv.URL, map[string]string{})
	if errType(t, err) != domain.ErrorTypeRemoteRejected {
		t.Fatalf("expected remote_rejected, got %v", err)
	}
	apiErr := domain.AsAPIError(err)
	if apiErr.UpstreamStatus != http.StatusUnprocessableEntity {
		t.Fatalf("UpstreamStatus = %d, want 422", apiErr.UpstreamStatus)
	}
	if apiErr.HTTPStatusCode() != http.StatusUnprocessableEntity {
		t.Fatalf("status passthrough broken: %d", apiErr.HTTPStatusCode())
	}
}

func TestSendJSONInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := New(testWebhooks(srv.URL))
	_, err := c.SendJSON(context.Background(), srv.URL, map[string]string{})
	if errType(t, err) != domain.ErrorTypeInternal {
		t.Fatalf("expected internal, got %v", err)
	}
}

func TestSendJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(testWebhooks(srv.URL), WithTimeout(20*time.Millisecond),
		WithHTTPClient(&http.Client{}))
	_, err := c.SendJSON(context.Background(), srv.URL, map[string]string{})
	if errType(t, err) != domain.ErrorTypeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestSendJSONUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(testWebhooks(url))
	_, err := c.SendJSON(context.Background(), url, map[string]string{})
	if errType(t, err) != domain.ErrorTypeRemoteUnreachable {
		t.Fatalf("expected remote_unreachable, got %v", err)
	}
}

func TestSendMultipart(t *testing.T) {
	var (
		gotFields   map[string]string
		gotFile     []byte
		gotFilename string
		gotPartType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		gotFields = make(map[string]string)
		for name, values := range r.MultipartForm.Value {
			gotFields[name] = values[0]
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile(image) error = %v", err)
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)
		gotFilename = header.Filename
		gotPartType = header.Header.Get("Content-Type")
		w.Write([]byte(`{"extracted":"ok"}`))
	}))
	defer srv.Close()

	c := New(testWebhooks(srv.URL))
	fields := map[string]any{
		"tipo_midia":    "imagem",
		"projeto_id":    "p1",
		"dados_modulo1": json.RawMessage(`{"claims":[]}`),
	}
	result, err := c.SendMultipart(context.Background(), srv.URL, fields, []byte("jpegbytes"), "foto.jpg")
	if err != nil {
		t.Fatalf("SendMultipart() error = %v", err)
	}

	if string(result) != `{"extracted":"ok"}` {
		t.Fatalf("unexpected result: %s", result)
	}
	if gotFields["tipo_midia"] != "imagem" || gotFields["projeto_id"] != "p1" {
		t.Fatalf("scalar fields lost: %v", gotFields)
	}
	if gotFields["dados_modulo1"] != `{"claims":[]}` {
		t.Fatalf("raw JSON field must keep its text form, got %q", gotFields["dados_modulo1"])
	}
	if string(gotFile) != "jpegbytes" {
		t.Fatal("file bytes do not match")
	}
	if gotFilename != "foto.jpg" {
		t.Fatalf("filename = %q", gotFilename)
	}
	if gotPartType != "image/jpeg" {
		t.Fatalf("file part Content-Type = %q", gotPartType)
	}
}

func TestFieldText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{nil, ""},
		{true, "true"},
		{42, "42"},
		{json.RawMessage(`{"a":1}`), `{"a":1}`},
		{map[string]int{"n": 1}, `{"n":1}`},
	}
	for _, tt := range tests {
		got, err := fieldText(tt.in)
		if err != nil {
			t.Errorf("fieldText(%v) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("fieldText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Replays a recorded webhook exchange. Re-record against live webhooks with
// VCR_MODE=record and MOSAIKO_VCR_URL pointing at the workflow engine.
func TestSendJSONRecorded(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "send_json")
	defer cleanup()

	url := "https://n8n.example.com/webhook/modulo2"
	if live := strings.TrimSpace(testutil.LiveWebhookURL()); live != "" {
		url = live
	}

	c := New(testWebhooks("https://n8n.example.com"),
		WithHTTPClient(testutil.VCRHTTPClient(r)))
	result, err := c.SendJSON(context.Background(), url, map[string]string{"texto": "Terra é plana"})
	if err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("recorded response is not JSON: %v", err)
	}
	if _, ok := parsed["claims"]; !ok {
		t.Fatalf("recorded response missing claims: %s", result)
	}
}
