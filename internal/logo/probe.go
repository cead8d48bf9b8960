package logo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Prober checks whether a candidate would load. A nil error means it would.
type Prober interface {
	Probe(ctx context.Context, name string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, name string) error

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, name string) error {
	return f(ctx, name)
}

const sniffLen = 512

// DirProber looks for candidates in a directory. A file loads when it is a
// non-empty regular file whose content looks like an image.
type DirProber struct {
	Dir string
}

// Probe implements Prober.
func (p DirProber) Probe(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(p.Dir, filepath.Base(name))
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	return checkImage(path, head[:n], "")
}

// HTTPProber fetches candidates relative to a base URL.
type HTTPProber struct {
	BaseURL string
	Client  *http.Client
}

// Probe implements Prober.
func (p HTTPProber) Probe(ctx context.Context, name string) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimSuffix(p.BaseURL, "/") + "/" + strings.TrimPrefix(name, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffLen))
	if err != nil {
		return err
	}
	return checkImage(url, head, resp.Header.Get("Content-Type"))
}

// checkImage accepts raster images by content sniffing and SVG by its
// root element.
func checkImage(where string, head []byte, contentType string) error {
	if len(head) == 0 {
		return fmt.Errorf("%s is empty", where)
	}
	if strings.HasPrefix(contentType, "image/") {
		return nil
	}
	if strings.HasPrefix(http.DetectContentType(head), "image/") {
		return nil
	}
	if bytes.Contains(bytes.ToLower(head), []byte("<svg")) {
		return nil
	}
	return fmt.Errorf("%s is not an image", where)
}
