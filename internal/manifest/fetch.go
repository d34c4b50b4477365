// internal/manifest/fetch.go
package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"blastdbbuilder/internal/errs"
)

// Fetcher downloads manifests over HTTP.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher without a fixed client timeout; callers bound
// the transfer through ctx.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 0}}
}

// Fetch downloads url into dest. The body is written to dest+".part" and
// renamed into place, so dest is either complete or untouched. Any transport
// failure or non-2xx status is an errs.Network error.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errs.New(errs.Network, "fetch manifest", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, errs.New(errs.Network, "fetch manifest", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errs.Newf(errs.Network, "fetch manifest", url, "unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("manifest dir: %w", err)
	}
	tmp := dest + ".part"
	fh, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(fh, resp.Body)
	if err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return 0, errs.New(errs.Network, "fetch manifest", url, err)
	}
	if err := fh.Sync(); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}
