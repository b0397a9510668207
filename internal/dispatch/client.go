// Package dispatch forwards stage payloads to the external webhooks that run
// the actual fact-checking pipeline.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mosaiko-ai/factcheck-gateway/internal/config"
	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
)

// The external stages can take minutes; a single attempt with a generous
// timeout, no retries.
const defaultTimeout = 300 * time.Second

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The client's own timeout is used
// as-is, so tests and recorded transports stay in control.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client resolves (media type, stage) pairs to webhook URLs and forwards
// payloads to them.
type Client struct {
	webhooks   config.WebhookConfig
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a dispatch client over the static webhook table.
func New(webhooks config.WebhookConfig, opts ...ClientOption) *Client {
	c := &Client{
		webhooks: webhooks,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

// ResolveURL returns the webhook URL for a stage. Stage 1 is selected by
// media type, the downstream stages by stage name.
func (c *Client) ResolveURL(mediaType string, stage domain.Stage) (string, error) {
	if stage == domain.StageModulo1 {
		url, ok := c.webhooks.Modulo1[mediaType]
		if !ok || url == "" {
			return "", domain.ErrInvalidInput("tipo de mídia %q não suportado", mediaType)
		}
		return url, nil
	}
	url, ok := c.webhooks.Stages[string(stage)]
	if !ok || url == "" {
		return "", domain.ErrInvalidInput("módulo %q não encontrado", stage)
	}
	return url, nil
}

// SendJSON posts the payload as a JSON body and returns the webhook's parsed
// JSON response.
func (c *Client) SendJSON(ctx context.Context, url string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.ErrInternal("failed to encode payload: %s", err)
	}
	return c.post(ctx, url, "application/json", bytes.NewReader(body))
}

// SendMultipart posts the fields as a multipart form with the file attached
// as a binary part named "image". Non-scalar field values are serialized to
// their JSON text form.
func (c *Client) SendMultipart(ctx context.Context, url string, fields map[string]any, file []byte, filename string) (json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		text, err := fieldText(value)
		if err != nil {
			return nil, domain.ErrInternal("failed to encode field %s: %s", name, err)
		}
		if err := w.WriteField(name, text); err != nil {
			return nil, domain.ErrInternal("failed to write field %s: %s", name, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, domain.ErrInternal("failed to create file part: %s", err)
	}
	if _, err := part.Write(file); err != nil {
		return nil, domain.ErrInternal("failed to write file part: %s", err)
	}
	if err := w.Close(); err != nil {
		return nil, domain.ErrInternal("failed to finalize multipart body: %s", err)
	}

	return c.post(ctx, url, w.FormDataContentType(), &buf)
}

func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, domain.ErrInternal("failed to create request: %s", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.ErrTimeout("tempo esgotado ao processar requisição")
		}
		return nil, domain.ErrRemoteUnreachable("erro ao conectar com o webhook: %s", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.ErrTimeout("tempo esgotado ao ler resposta do webhook")
		}
		return nil, domain.ErrRemoteUnreachable("erro ao ler resposta do webhook: %s", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.ErrRemoteRejected(resp.StatusCode,
			"webhook respondeu com status %d", resp.StatusCode)
	}

	if !json.Valid(respBody) {
		return nil, domain.ErrInternal("webhook returned invalid JSON (status %d)", resp.StatusCode)
	}
	return json.RawMessage(respBody), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func fieldText(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", nil
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", v), nil
	default:
		text, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(text), nil
	}
}
