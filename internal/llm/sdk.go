package llm

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"github.com/corewell/memoryd/internal/memerr"
)

func init() {
	RegisterBackend("sdk", func(p Profile) Client { return newSDKClient(p) })
}

// sdkClient implements Client against google.golang.org/genai's typed
// Content/Part request and response structs: lazy client init guarded
// by sync.Once, genai.GenerateContentConfig for request shaping.
type sdkClient struct {
	profile Profile

	once    sync.Once
	client  *genai.Client
	initErr error
}

func newSDKClient(p Profile) *sdkClient {
	return &sdkClient{profile: p}
}

func (c *sdkClient) ensureClient(ctx context.Context) error {
	c.once.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.profile.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return c.initErr
}

func (c *sdkClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", memerr.Wrap(memerr.BackendUnavailable, "sdk client init failed", err)
	}

	var contents []*genai.Content
	cfg := &genai.GenerateContentConfig{}
	for _, m := range req.Messages {
		if m.Role == "system" {
			cfg.SystemInstruction = genai.NewContentFromText(m.Text, genai.RoleUser)
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.profile.ChatModel, contents, cfg)
	if err != nil {
		return "", memerr.Wrap(memerr.BackendUnavailable, "sdk generate content failed", err)
	}
	return extractText(resp), nil
}

func (c *sdkClient) Summarize(ctx context.Context, text, instruction string) (string, error) {
	return c.Chat(ctx, ChatRequest{Messages: []ChatMessage{
		{Role: "system", Text: instruction},
		{Role: "user", Text: text},
	}})
}

func (c *sdkClient) Vision(ctx context.Context, req VisionRequest) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", memerr.Wrap(memerr.BackendUnavailable, "sdk client init failed", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	resp, err := c.client.Models.GenerateContent(ctx, c.profile.ChatModel, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", memerr.Wrap(memerr.BackendUnavailable, "sdk vision call failed", err)
	}
	return extractText(resp), nil
}

func (c *sdkClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, memerr.Wrap(memerr.BackendUnavailable, "sdk client init failed", err)
	}

	var contents []*genai.Content
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	resp, err := c.client.Models.EmbedContent(ctx, c.profile.EmbedModel, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, memerr.Wrap(memerr.BackendUnavailable, "sdk embed failed", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *sdkClient) Transcribe(ctx context.Context, audio Image) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", memerr.Wrap(memerr.BackendUnavailable, "sdk client init failed", err)
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{
		genai.NewPartFromText("Transcribe this audio verbatim."),
		genai.NewPartFromBytes(audio.Data, audio.MIMEType),
	}}}
	resp, err := c.client.Models.GenerateContent(ctx, c.profile.ChatModel, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", memerr.Wrap(memerr.BackendUnavailable, "sdk transcribe call failed", err)
	}
	return extractText(resp), nil
}

// extractText concatenates all text parts of the first candidate of a
// *genai.GenerateContentResponse.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			out += p.Text
		}
	}
	return out
}
