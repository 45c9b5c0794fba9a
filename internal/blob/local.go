package blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/corewell/memoryd/internal/memerr"
)

// LocalFetcher resolves file:// and bare filesystem paths by reading
// straight off disk, and http(s):// URLs with a plain GET.
//
// HTML responses are reduced to their visible text via goquery before
// being handed back, rather than passing raw markup downstream.
type LocalFetcher struct {
	httpClient *http.Client
}

// NewLocalFetcher builds a LocalFetcher with the given HTTP timeout. A
// zero timeout falls back to 30s.
func NewLocalFetcher(timeout time.Duration) *LocalFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LocalFetcher{httpClient: &http.Client{Timeout: timeout}}
}

func (f *LocalFetcher) Fetch(ctx context.Context, source string) (*Blob, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.fetchHTTP(ctx, source)
	}
	return f.fetchLocal(strings.TrimPrefix(source, "file://"))
}

func (f *LocalFetcher) fetchLocal(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, memerr.Wrap(memerr.FetchFailed, fmt.Sprintf("read local file %q", path), err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Blob{ContentType: ct, Data: data}, nil
}

func (f *LocalFetcher) fetchHTTP(ctx context.Context, url string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, memerr.Wrap(memerr.FetchFailed, "build request", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, memerr.Wrap(memerr.FetchFailed, fmt.Sprintf("GET %q", url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, memerr.Newf(memerr.FetchFailed, "GET %q: status %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return nil, memerr.Wrap(memerr.ExtractionFailed, "parse html", err)
		}
		text := strings.TrimSpace(doc.Find("body").Text())
		return &Blob{ContentType: "text/plain", Data: []byte(text)}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, memerr.Wrap(memerr.FetchFailed, fmt.Sprintf("read body %q", url), err)
	}
	ct := strings.SplitN(contentType, ";", 2)[0]
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Blob{ContentType: ct, Data: data}, nil
}
