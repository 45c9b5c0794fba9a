package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
)

// captionImage routes the image through the configured vision client and
// returns its one-paragraph description.
func captionImage(ctx context.Context, mimeType string, r io.Reader, cap Captioner) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	caption, err := cap.Vision(ctx, "Describe this image in one short paragraph.", []ImageData{{MIMEType: mimeType, Data: data}})
	if err != nil {
		return "", fmt.Errorf("caption image: %w", err)
	}
	return caption, nil
}

func extractImage(mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", mimeType, encoded), nil
}
