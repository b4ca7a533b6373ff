package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/videomind-backend/internal/logger"
)

// Part is one piece of a multimodal request: text, or raw bytes with a mime
// type (jpeg frame, wav chunk).
type Part struct {
	Text       string
	InlineData *Blob
}

type Blob struct {
	MIMEType string
	Data     []byte
}

func TextPart(s string) Part            { return Part{Text: s} }
func BlobPart(mime string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mime, Data: data}}
}

// Client is the language-model client used by the analysis services. Text
// calls go to the default model; Vision calls go to the (usually cheaper)
// vision model.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateParts(ctx context.Context, parts []Part) (string, error)
	GenerateVision(ctx context.Context, parts []Part) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	visionModel string
	httpClient *http.Client
	maxRetries int
	temperature float64
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = "gemini-2.0-flash"
	}
	visionModel := strings.TrimSpace(os.Getenv("GEMINI_VISION_MODEL"))
	if visionModel == "" {
		visionModel = model
	}

	timeoutSec := 300
	if v := strings.TrimSpace(os.Getenv("GEMINI_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := strings.TrimSpace(os.Getenv("GEMINI_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	temperature := 0.2
	if v := strings.TrimSpace(os.Getenv("GEMINI_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = f
		}
	}

	return &client{
		log:         log.With("service", "GeminiClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:  maxRetries,
		temperature: temperature,
	}, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *wireBlob `json:"inline_data,omitempty"`
}

type wireBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, truncate(e.Body, 512))
}

func (c *client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, c.model, []Part{TextPart(prompt)})
}

func (c *client) GenerateParts(ctx context.Context, parts []Part) (string, error) {
	return c.generate(ctx, c.model, parts)
}

func (c *client) GenerateVision(ctx context.Context, parts []Part) (string, error) {
	return c.generate(ctx, c.visionModel, parts)
}

func (c *client) generate(ctx context.Context, model string, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("no parts")
	}
	wire := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		if p.InlineData != nil {
			wire = append(wire, wirePart{InlineData: &wireBlob{
				MIMEType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			}})
			continue
		}
		wire = append(wire, wirePart{Text: p.Text})
	}
	req := generateRequest{
		Contents:         []content{{Role: "user", Parts: wire}},
		GenerationConfig: &generationConfig{Temperature: c.temperature},
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", model)
	var resp generateResponse
	if err := c.do(ctx, path, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("gemini error %d (%s): %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("gemini returned empty text (finish_reason=%s)", resp.Candidates[0].FinishReason)
	}
	return out, nil
}

func (c *client) doOnce(ctx context.Context, path string, body any) ([]byte, int, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp.StatusCode, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp.StatusCode, nil
}

func (c *client) do(ctx context.Context, path string, body, out any) error {
	backoff := 2 * time.Second
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, status, err := c.doOnce(ctx, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("gemini decode error: %w; raw=%s", uErr, truncate(string(raw), 512))
			}
			return nil
		}
		lastErr = err
		if !isRetryable(status, err) || attempt == c.maxRetries-1 {
			return err
		}
		c.log.Warn("Gemini request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return lastErr
}

func isRetryable(status int, err error) bool {
	if err == nil {
		return false
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Transport-level failures (reset, refused, timeout) are worth a retry.
	return status == 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
