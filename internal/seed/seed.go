// Package seed reads record representations to import from files or URLs.
package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/serializer"
)

// maxPayload caps a downloaded seed document.
const maxPayload = 32 << 20

// Read decodes a JSON array of representations. Key order of every object
// is kept.
func Read(r io.Reader) ([]any, error) {
	payload, err := io.ReadAll(io.LimitReader(r, maxPayload))
	if err != nil {
		return nil, errors.Wrap(err, "read seed data")
	}
	decoded, err := serializer.JSONEncoder{}.Decode(payload)
	if err != nil {
		return nil, err
	}
	items, ok := decoded.([]any)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "seed data must be a JSON array, got %T", decoded)
	}
	return items, nil
}

// Fetch downloads and decodes a seed document.
func Fetch(ctx context.Context, client *http.Client, url string) ([]any, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "seed url %q: %v", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: external API returned status: %d", url, resp.StatusCode)
	}
	return Read(resp.Body)
}

// Load reads a seed document from a local path or an http(s) URL.
func Load(ctx context.Context, source string) ([]any, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return Fetch(ctx, nil, source)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer f.Close()
	return Read(f)
}
