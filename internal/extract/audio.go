package extract

import (
	"context"
	"fmt"
	"io"
)

// extractAudio reads the whole clip into memory and routes it through the
// configured transcription client. No local decoding happens here; the
// LLM backend is expected to accept raw audio bytes with a MIME type.
func extractAudio(ctx context.Context, mime string, r io.Reader, cap Captioner) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	text, err := cap.Transcribe(ctx, ImageData{MIMEType: mime, Data: data})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return text, nil
}
