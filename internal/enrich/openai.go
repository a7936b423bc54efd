package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for the OpenAI client.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("enrich: OpenAI API key is required")
	// ErrRequestFailed is returned when the API answers with a non-2xx status.
	ErrRequestFailed = errors.New("enrich: OpenAI request failed")
)

// titleSystemMsg is the fixed persona for title generation.
const titleSystemMsg = "You suggest very short (2-7 word) titles in the language of the transcript: " +
	"attention-grabbing but accurate, with no quotation marks."

// Transcriber turns audio bytes into text. An empty transcript means no
// speech was detected and is not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Titler derives a short title from a non-empty transcript.
type Titler interface {
	Title(ctx context.Context, transcript string) (string, error)
}

// OpenAIClient implements Transcriber and Titler against the OpenAI API.
type OpenAIClient struct {
	apiKey          string
	baseURL         string
	transcribeModel string
	titleModel      string
	httpClient      *http.Client
}

// Compile-time checks.
var (
	_ Transcriber = (*OpenAIClient)(nil)
	_ Titler      = (*OpenAIClient)(nil)
)

// ClientOption configures an OpenAIClient.
type ClientOption func(*OpenAIClient)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *OpenAIClient) {
		c.httpClient = hc
	}
}

// WithModels overrides the transcription and title models.
func WithModels(transcribe, title string) ClientOption {
	return func(c *OpenAIClient) {
		if transcribe != "" {
			c.transcribeModel = transcribe
		}
		if title != "" {
			c.titleModel = title
		}
	}
}

// NewOpenAIClient creates an OpenAIClient.
func NewOpenAIClient(apiKey string, opts ...ClientOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	c := &OpenAIClient{
		apiKey:          apiKey,
		baseURL:         "https://api.openai.com/v1",
		transcribeModel: "gpt-4o-mini-transcribe",
		titleModel:      "gpt-3.5-turbo",
		httpClient:      &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe submits an audio file to the transcriptions endpoint and
// returns the plain transcript text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath) // #nosec G304 - path produced by the enrichment driver
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.transcribeModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("write format field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out transcriptionResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Title asks the chat model for a short title based on the transcript.
func (c *OpenAIClient) Title(ctx context.Context, transcript string) (string, error) {
	payload := chatRequest{
		Model:       c.titleModel,
		Temperature: 0.6,
		Messages: []chatMessage{
			{Role: "system", Content: titleSystemMsg},
			{Role: "user", Content: "Based on the transcript below, propose one short title (2-7 words), without quotation marks.\n\n" + transcript},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out chatResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrRequestFailed)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// do executes the request and decodes a JSON response into out.
func (c *OpenAIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: http %d: %s", ErrRequestFailed, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
