package assessment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	apperrors "github.com/lethanbinh/apsas-export-service/pkg/errors"

	"github.com/rs/zerolog"
)

// ProxyStatusError reports a non-OK answer from the file proxy for one
// remote URL. The pipeline turns it into a placeholder entry instead of
// aborting.
type ProxyStatusError struct {
	StatusCode int
	URL        string
}

func (e ProxyStatusError) Error() string {
	return fmt.Sprintf("file proxy returned status %d for %s", e.StatusCode, e.URL)
}

// FileFetcher downloads binaries through the same-origin file proxy.
// Remote URLs are never fetched directly; the proxy streams them back so
// the export pipeline has a single egress point to throttle.
type FileFetcher struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewFileFetcher(cfg *config.Config) *FileFetcher {
	return &FileFetcher{
		baseURL: cfg.Export.ProxyBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Export.FetchTimeout,
		},
		log: logger.Get(),
	}
}

func (f *FileFetcher) Fetch(ctx context.Context, remoteURL string) ([]byte, error) {
	if remoteURL == "" {
		return nil, apperrors.ErrInvalidProxyURL
	}

	params := url.Values{}
	params.Set("url", remoteURL)
	fullURL := f.baseURL + "/api/file-proxy?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ProxyStatusError{StatusCode: resp.StatusCode, URL: remoteURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy response: %w", err)
	}

	f.log.Debug().Str("url", remoteURL).Int("bytes", len(data)).Msg("File fetched through proxy")
	return data, nil
}
