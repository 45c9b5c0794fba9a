package llm

import (
	"context"

	"github.com/corewell/memoryd/internal/extract"
)

// captionerAdapter satisfies extract.Captioner by delegating to a Client,
// so the extract package can caption video frames and transcribe audio
// without importing llm (and its http/sdk backend registrations) itself.
type captionerAdapter struct {
	client Client
}

// AsCaptioner wraps an llm.Client as an extract.Captioner for the
// memorize pipeline's preprocess-multimodal step.
func AsCaptioner(client Client) extract.Captioner {
	return captionerAdapter{client: client}
}

func (a captionerAdapter) Vision(ctx context.Context, prompt string, images []extract.ImageData) (string, error) {
	req := VisionRequest{Prompt: prompt}
	for _, img := range images {
		req.Images = append(req.Images, Image{MIMEType: img.MIMEType, Data: img.Data})
	}
	return a.client.Vision(ctx, req)
}

func (a captionerAdapter) Transcribe(ctx context.Context, audio extract.ImageData) (string, error) {
	return a.client.Transcribe(ctx, Image{MIMEType: audio.MIMEType, Data: audio.Data})
}
