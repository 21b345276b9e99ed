// Package groq is a minimal client for the Groq inference API: Whisper
// transcription and chat completions.
package groq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// ErrMissingAPIKey indicates the client was constructed without credentials.
var ErrMissingAPIKey = errors.New("groq: API key not configured")

// Config configures the client.
type Config struct {
	BaseURL      string
	APIKey       string
	WhisperModel string
	ExtractModel string
	AnswerModel  string
}

// Client talks to the Groq API over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Groq client. A missing API key is a configuration
// error surfaced at construction, not per request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // transcription of long sessions is slow
		},
	}, nil
}

// transcriptionResponse mirrors the verbose_json transcription payload. Only
// the text field is used; word-level timings are ignored.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file at audioPath and returns the transcript
// text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := writer.WriteField("model", c.cfg.WhisperModel); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var parsed transcriptionResponse
	if err := c.do(req, &parsed); err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return parsed.Text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatComplete sends a chat completion request to model and returns the first
// choice's content. An empty system message is omitted.
func (c *Client) ChatComplete(ctx context.Context, model, system, prompt string, temperature float64) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var parsed chatResponse
	if err := c.do(req, &parsed); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("groq API error: %d - %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Extractor returns a generator bound to the structured-extraction model.
func (c *Client) Extractor() *BoundGenerator {
	return &BoundGenerator{client: c, model: c.cfg.ExtractModel, temperature: 0.25}
}

// Answerer returns a generator bound to the answer-synthesis model.
func (c *Client) Answerer() *BoundGenerator {
	return &BoundGenerator{client: c, model: c.cfg.AnswerModel}
}

// BoundGenerator adapts the client to the single-model Generator interfaces
// used by the extraction and retrieval packages.
type BoundGenerator struct {
	client      *Client
	model       string
	temperature float64
}

// Complete sends prompt to the bound model.
func (g *BoundGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	return g.client.ChatComplete(ctx, g.model, system, prompt, g.temperature)
}
