package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FrameCount is the most frames extractVideo pulls out of a clip for
// captioning. ffmpeg's "select" filter keeps every 30th frame counted from
// the start and extraction stops after FrameCount of them, so only the
// opening FrameCount*30 frames of a longer clip are sampled; the frames
// are not spread over the clip's full length.
const FrameCount = 4

// extractVideo shells out to ffmpeg to sample FrameCount frames, then
// captions each one through the configured vision client and joins the
// per-frame descriptions into a single text representation. Requires an
// ffmpeg binary on PATH; missing ffmpeg surfaces as an error rather than
// silently degrading to an empty string, since a caller that reached this
// branch explicitly configured video modality support.
func extractVideo(ctx context.Context, mime string, r io.Reader, cap Captioner) (string, error) {
	dir, err := os.MkdirTemp("", "memoryd-video-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input")
	f, err := os.Create(inPath)
	if err != nil {
		return "", fmt.Errorf("create temp input: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp input: %w", err)
	}
	f.Close()

	framePattern := filepath.Join(dir, "frame-%03d.jpg")
	const frameStride = 30 // roughly one frame per second at 30fps source video

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inPath,
		"-vf", fmt.Sprintf("select='not(mod(n\\,%d))'", frameStride),
		"-vsync", "vfr",
		"-frames:v", fmt.Sprintf("%d", FrameCount),
		framePattern,
	)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg frame extraction: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame-*.jpg"))
	if err != nil {
		return "", fmt.Errorf("glob extracted frames: %w", err)
	}
	sort.Strings(matches)

	var images []ImageData
	for _, p := range matches {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		images = append(images, ImageData{MIMEType: "image/jpeg", Data: data})
	}
	if len(images) == 0 {
		return "", fmt.Errorf("no frames extracted from video")
	}

	captions := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			caption, err := cap.Vision(gctx, "Describe what is happening in this single video frame, in one sentence.", []ImageData{img})
			if err != nil {
				return fmt.Errorf("caption frame %d: %w", i, err)
			}
			captions[i] = caption
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(captions, " "), nil
}
