package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ovelight/storyreel-backend/internal/observability"
	"github.com/ovelight/storyreel-backend/internal/pkg/httpx"
	"github.com/ovelight/storyreel-backend/internal/platform/envutil"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
)

// ImagePayload is a generated image: inline bytes, or a URL to fetch them.
type ImagePayload struct {
	Bytes    []byte
	URL      string
	MimeType string
}

// ImageJobStatus is the state of an asynchronous image generation job.
type ImageJobStatus struct {
	ID     string
	Status string
	Image  ImagePayload
	Error  string
}

// VideoOutput is one result item of a video generation job. Either the
// inline base64 payload or the URL is set; thumbnails follow the same rule.
type VideoOutput struct {
	B64             string
	URL             string
	ThumbnailB64    string
	ThumbnailURL    string
	DurationSeconds float64
}

// VideoJobStatus is the state of a long-running video generation job.
// RawExcerpt carries a truncated response body for error reporting.
type VideoJobStatus struct {
	ID         string
	Status     string
	Outputs    []VideoOutput
	Error      string
	RawExcerpt string
}

// Client is the LLM/media provider surface the pipeline consumes.
type Client interface {
	// GenerateStructured runs a chat completion constrained to a strict JSON
	// schema and returns the raw assistant text.
	GenerateStructured(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error)

	// GenerateChat runs a free-form chat completion over the given turns.
	// maxTokens <= 0 falls back to the configured output ceiling.
	GenerateChat(ctx context.Context, turns []ChatTurn, maxTokens int) (string, error)

	// CreateImage requests one image inline (synchronous deployments).
	CreateImage(ctx context.Context, deployment, prompt, size string) (ImagePayload, error)

	// SubmitImageJob / GetImageJob drive job-based image deployments.
	SubmitImageJob(ctx context.Context, deployment, prompt, size string) (string, error)
	GetImageJob(ctx context.Context, operationID string) (ImageJobStatus, error)

	// SubmitVideoJob / GetVideoJob drive long-running video generation.
	SubmitVideoJob(ctx context.Context, deployment, prompt string, durationSeconds int, size, format string) (VideoJobStatus, error)
	GetVideoJob(ctx context.Context, operationID string) (VideoJobStatus, error)

	// DownloadBytes fetches a result URL, returning body bytes and content type.
	DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int

	temperature     *float64
	maxOutputTokens int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := envutil.Str("OPENAI_BASE_URL", "https://api.openai.com")
	baseURL = strings.TrimRight(baseURL, "/")

	model := envutil.Str("OPENAI_MODEL", "gpt-4o-mini")

	var tempPtr *float64
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); !strings.EqualFold(raw, "off") {
		temp := 0.2
		if raw != "" {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				temp = f
			}
		}
		tempPtr = &temp
	}

	return &client{
		log:             log.With("service", "ProviderClient"),
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		httpClient:      &http.Client{Timeout: time.Duration(envutil.Int("OPENAI_TIMEOUT_SECONDS", 180)) * time.Second},
		maxRetries:      envutil.Int("OPENAI_MAX_RETRIES", 4),
		temperature:     tempPtr,
		maxOutputTokens: envutil.Int("OPENAI_MAX_OUTPUT_TOKENS", 4096),
	}, nil
}

type providerHTTPError struct {
	StatusCode int
	Body       string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, truncateBody(e.Body, 300))
}

func (e *providerHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func truncateBody(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &providerHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, kind, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			observability.Current().ObserveProviderRequest(kind, path, statusLabel(resp, nil), time.Since(start))
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("decode provider response: %w; raw=%s", uErr, truncateBody(string(raw), 300))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			observability.Current().ObserveProviderRequest(kind, path, statusLabel(resp, err), time.Since(start))
			return err
		}

		sleepFor := httpx.Jitter(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Provider request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return errors.New("unreachable retry loop")
}

func statusLabel(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		return "transport_error"
	}
	return "unknown"
}

// -------------------- Chat completions (structured) --------------------

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatTurn is one conversational message in a free-form completion.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			// Content is normally a string, but some compatible endpoints
			// return a sequence of text fragments.
			Content json.RawMessage `json:"content"`
			Refusal string          `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// assistantText flattens a chat message content field that may be either a
// plain JSON string or an array of {type,text} fragments.
func assistantText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		return b.String()
	}
	return ""
}

func isUnsupportedTemperature(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	return strings.Contains(msg, "unsupported") ||
		strings.Contains(msg, "does not support") ||
		strings.Contains(msg, "only the default")
}

func (c *client) GenerateStructured(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error) {
	if strings.TrimSpace(schemaName) == "" {
		return "", errors.New("schemaName required")
	}
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxOutputTokens,
	}
	if schema != nil {
		req.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		}
	}

	var resp chatResponse
	err := c.do(ctx, "chat", "POST", "/v1/chat/completions", req, &resp)
	if err != nil && req.Temperature != nil && isUnsupportedTemperature(err) {
		req.Temperature = nil
		err = c.do(ctx, "chat", "POST", "/v1/chat/completions", req, &resp)
	}
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Refusal) != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	text := assistantText(choice.Message.Content)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("chat response has no assistant text")
	}
	return text, nil
}

func (c *client) GenerateChat(ctx context.Context, turns []ChatTurn, maxTokens int) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("chat turns required")
	}
	if maxTokens <= 0 {
		maxTokens = c.maxOutputTokens
	}
	msgs := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}
	req := chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	err := c.do(ctx, "chat", "POST", "/v1/chat/completions", req, &resp)
	if err != nil && req.Temperature != nil && isUnsupportedTemperature(err) {
		req.Temperature = nil
		err = c.do(ctx, "chat", "POST", "/v1/chat/completions", req, &resp)
	}
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Refusal) != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	text := assistantText(choice.Message.Content)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("chat response has no assistant text")
	}
	return text, nil
}

// -------------------- Images --------------------

type imagesRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResult struct {
	B64JSON string `json:"b64_json"`
	URL     string `json:"url"`
}

type imagesResponse struct {
	Data []imageResult `json:"data"`
}

func decodeImageResult(item imageResult) (ImagePayload, error) {
	var out ImagePayload
	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return out, fmt.Errorf("decode image base64: %w", err)
		}
		out.Bytes = raw
		out.MimeType = "image/png"
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		out.URL = u
		return out, nil
	}
	return out, errors.New("image result missing b64_json and url")
}

func (c *client) CreateImage(ctx context.Context, deployment, prompt, size string) (ImagePayload, error) {
	var out ImagePayload
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}
	if strings.TrimSpace(deployment) == "" {
		return out, errors.New("image deployment required")
	}

	responseFormat := "b64_json"
	if strings.HasPrefix(strings.ToLower(deployment), "gpt-image-") {
		// gpt-image deployments reject response_format and always inline.
		responseFormat = ""
	}
	req := imagesRequest{
		Model:          deployment,
		Prompt:         prompt,
		N:              1,
		Size:           strings.TrimSpace(size),
		ResponseFormat: responseFormat,
	}

	var resp imagesResponse
	if err := c.do(ctx, "image", "POST", "/v1/images/generations", req, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	return decodeImageResult(resp.Data[0])
}

type imageJobResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Result *imageResult `json:"result,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *client) SubmitImageJob(ctx context.Context, deployment, prompt, size string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("image prompt required")
	}
	req := imagesRequest{
		Model:  deployment,
		Prompt: strings.TrimSpace(prompt),
		N:      1,
		Size:   strings.TrimSpace(size),
	}
	var resp imageJobResponse
	if err := c.do(ctx, "image", "POST", "/v1/images/jobs", req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", errors.New("image job create missing id")
	}
	return resp.ID, nil
}

func (c *client) GetImageJob(ctx context.Context, operationID string) (ImageJobStatus, error) {
	var out ImageJobStatus
	if strings.TrimSpace(operationID) == "" {
		return out, errors.New("image operation id required")
	}
	var resp imageJobResponse
	if err := c.do(ctx, "image", "GET", "/v1/images/jobs/"+url.PathEscape(operationID), nil, &resp); err != nil {
		return out, err
	}
	out.ID = resp.ID
	out.Status = strings.ToLower(strings.TrimSpace(resp.Status))
	if resp.Error != nil {
		out.Error = resp.Error.Message
	}
	if resp.Result != nil {
		payload, err := decodeImageResult(*resp.Result)
		if err == nil {
			out.Image = payload
		}
	}
	return out, nil
}

// -------------------- Video jobs --------------------

type videoJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Outputs []struct {
		B64JSON         string  `json:"b64_json"`
		URL             string  `json:"url"`
		ThumbnailB64    string  `json:"thumbnail_b64"`
		ThumbnailURL    string  `json:"thumbnail_url"`
		DurationSeconds float64 `json:"duration_seconds"`
	} `json:"outputs,omitempty"`
}

func (c *client) videoStatusFromResponse(resp videoJobResponse, raw string) VideoJobStatus {
	out := VideoJobStatus{
		ID:         resp.ID,
		Status:     strings.ToLower(strings.TrimSpace(resp.Status)),
		RawExcerpt: truncateBody(raw, 300),
	}
	if resp.Error != nil {
		out.Error = resp.Error.Message
	}
	for _, o := range resp.Outputs {
		out.Outputs = append(out.Outputs, VideoOutput{
			B64:             o.B64JSON,
			URL:             o.URL,
			ThumbnailB64:    o.ThumbnailB64,
			ThumbnailURL:    o.ThumbnailURL,
			DurationSeconds: o.DurationSeconds,
		})
	}
	// A finished job without explicit outputs exposes its payload on the
	// content endpoint.
	if (out.Status == "succeeded" || out.Status == "completed") && len(out.Outputs) == 0 && strings.TrimSpace(resp.ID) != "" {
		out.Outputs = append(out.Outputs, VideoOutput{
			URL: c.baseURL + "/v1/videos/" + url.PathEscape(resp.ID) + "/content",
		})
	}
	return out
}

func (c *client) SubmitVideoJob(ctx context.Context, deployment, prompt string, durationSeconds int, size, format string) (VideoJobStatus, error) {
	var out VideoJobStatus
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("video prompt required")
	}
	if strings.TrimSpace(deployment) == "" {
		return out, errors.New("video deployment required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("prompt", prompt)
	_ = w.WriteField("model", deployment)
	if strings.TrimSpace(size) != "" {
		_ = w.WriteField("size", size)
	}
	if strings.TrimSpace(format) != "" {
		_ = w.WriteField("format", format)
	}
	if durationSeconds > 0 {
		_ = w.WriteField("seconds", strconv.Itoa(durationSeconds))
	}
	_ = w.Close()

	raw, err := c.doMultipart(ctx, "POST", "/v1/videos", buf.Bytes(), w.FormDataContentType())
	if err != nil {
		return out, err
	}
	var resp videoJobResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return out, fmt.Errorf("decode video create response: %w", err)
	}
	return c.videoStatusFromResponse(resp, string(raw)), nil
}

func (c *client) GetVideoJob(ctx context.Context, operationID string) (VideoJobStatus, error) {
	var out VideoJobStatus
	if strings.TrimSpace(operationID) == "" {
		return out, errors.New("video operation id required")
	}
	resp, raw, err := c.doOnce(ctx, "GET", "/v1/videos/"+url.PathEscape(operationID), nil)
	observability.Current().ObserveProviderRequest("video", "/v1/videos/{id}", statusLabel(resp, err), 0)
	if err != nil {
		return out, err
	}
	var parsed videoJobResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return out, fmt.Errorf("decode video status: %w", err)
	}
	return c.videoStatusFromResponse(parsed, string(raw)), nil
}

func (c *client) doMultipart(ctx context.Context, method, path string, payload []byte, contentType string) ([]byte, error) {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, err
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &providerHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return raw, nil
	}
	return nil, errors.New("multipart request failed")
}

func (c *client) DownloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	// Attach auth only for the provider's own host; signed result URLs can
	// reject an unrelated Authorization header.
	if sameHost(c.baseURL, rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &providerHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	ct := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	return raw, ct, nil
}

func sameHost(baseURL, rawURL string) bool {
	b, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || b == nil {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u == nil {
		return false
	}
	return b.Hostname() != "" && strings.EqualFold(b.Hostname(), u.Hostname())
}
