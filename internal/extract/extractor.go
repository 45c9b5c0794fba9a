// Package extract turns a fetched blob into plain text the memorize
// pipeline can feed to an LLM, dispatching on MIME type.
package extract

import (
	"context"
	"io"
	"strings"
)

// Captioner is the narrow slice of llm.Client that video and audio
// extraction need. Defined locally so this package does not import llm
// just to describe two methods.
type Captioner interface {
	Vision(ctx context.Context, prompt string, images []ImageData) (string, error)
	Transcribe(ctx context.Context, audio ImageData) (string, error)
}

// ImageData is MIME type plus raw bytes, mirrored from llm.Image so
// callers don't need to import llm for this package's signatures.
type ImageData struct {
	MIMEType string
	Data     []byte
}

// Extract reads r and returns a text representation of the content.
// Returns ("", nil) for unsupported content types. cap may be nil; video
// and audio content types then fall through to the unsupported case
// instead of erroring, since captioning requires a configured LLM
// profile, and images degrade to a base64 data URI instead of a caption.
func Extract(ctx context.Context, contentType string, r io.Reader, cap Captioner) (string, error) {
	mime := strings.SplitN(contentType, ";", 2)[0]
	mime = strings.TrimSpace(strings.ToLower(mime))

	switch {
	case strings.HasPrefix(mime, "text/"), mime == "application/json":
		return extractText(r)
	case mime == "application/pdf":
		return extractPDF(r)
	case mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(r)
	case mime == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return extractXLSX(r)
	case strings.HasPrefix(mime, "image/"):
		if cap == nil {
			return extractImage(mime, r)
		}
		return captionImage(ctx, mime, r, cap)
	case strings.HasPrefix(mime, "video/"):
		if cap == nil {
			return "", nil
		}
		return extractVideo(ctx, mime, r, cap)
	case strings.HasPrefix(mime, "audio/"):
		if cap == nil {
			return "", nil
		}
		return extractAudio(ctx, mime, r, cap)
	default:
		return "", nil
	}
}
