package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corewell/memoryd/internal/memerr"
)

func init() {
	RegisterBackend("http", func(p Profile) Client { return newHTTPClient(p) })
}

// httpClient implements Client with raw net/http calls against an
// OpenAI/Anthropic-compatible endpoint, grounded on
// internal/model/anthropic.go's AnthropicLLM: no SDK dependency, a
// hand-rolled request/response shape, and endpoint overrides instead of
// a hardcoded base URL.
type httpClient struct {
	profile Profile
	client  *http.Client
}

func newHTTPClient(p Profile) *httpClient {
	return &httpClient{profile: p, client: &http.Client{Timeout: 60 * time.Second}}
}

func (c *httpClient) endpoint(key, fallback string) string {
	if c.profile.EndpointOverrides != nil {
		if v, ok := c.profile.EndpointOverrides[key]; ok {
			return v
		}
	}
	return c.profile.BaseURL + fallback
}

func (c *httpClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var messages []map[string]any
	var system string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Text
			continue
		}
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Text})
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model":      c.profile.ChatModel,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		body["system"] = system
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	var resp anthropicStyleResponse
	if err := c.post(ctx, c.endpoint("chat", "/v1/messages"), body, &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *httpClient) Summarize(ctx context.Context, text, instruction string) (string, error) {
	return c.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		{Role: "system", Text: instruction},
		{Role: "user", Text: text},
	}})
}

func (c *httpClient) Vision(ctx context.Context, req VisionRequest) (string, error) {
	var content []map[string]any
	content = append(content, map[string]any{"type": "text", "text": req.Prompt})
	for _, img := range req.Images {
		content = append(content, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": img.MIMEType,
				"data":       base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	body := map[string]any{
		"model":      c.profile.ChatModel,
		"max_tokens": 2048,
		"messages":   []map[string]any{{"role": "user", "content": content}},
	}
	var resp anthropicStyleResponse
	if err := c.post(ctx, c.endpoint("vision", "/v1/messages"), body, &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *httpClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := map[string]any{"model": c.profile.EmbedModel, "input": texts}
	var resp openAIStyleEmbeddingResponse
	if err := c.post(ctx, c.endpoint("embed", "/v1/embeddings"), body, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (c *httpClient) Transcribe(ctx context.Context, audio Image) (string, error) {
	body := map[string]any{
		"model": c.profile.ChatModel,
		"audio": map[string]any{"mime_type": audio.MIMEType, "data": base64.StdEncoding.EncodeToString(audio.Data)},
	}
	var resp anthropicStyleResponse
	if err := c.post(ctx, c.endpoint("transcribe", "/v1/audio/transcriptions"), body, &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *httpClient) post(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.profile.APIKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.profile.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return memerr.Wrap(memerr.BackendUnavailable, "llm backend request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return memerr.Newf(memerr.BackendUnavailable, "llm backend returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type anthropicStyleResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r anthropicStyleResponse) text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

type openAIStyleEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
