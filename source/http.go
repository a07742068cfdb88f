package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/always-cache/quotes"
	cachecontrol "github.com/always-cache/quotes/pkg/cache-control"
)

const defaultHTTPTimeout = 10 * time.Second

// maxPayloadSize caps the dataset download.
const maxPayloadSize = 32 << 20

// HTTPLoader fetches the dataset from a URL, bypassing any intermediate caches.
type HTTPLoader struct {
	URL    string
	Client *http.Client
}

func NewHTTPLoader(url string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPLoader{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLoader) Load(ctx context.Context) (quotes.QuoteSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, quotes.NewLoadError(KindHTTP, "request", err)
	}
	req.Header.Set("Cache-Control", cachecontrol.NoStore().String())
	req.Header.Set("Accept", "application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, quotes.NewLoadError(KindHTTP, "get", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, quotes.NewLoadError(KindHTTP, "get", fmt.Errorf("HTTP %d", res.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxPayloadSize))
	if err != nil {
		return nil, quotes.NewLoadError(KindHTTP, "read", err)
	}
	set, err := quotes.DecodeQuoteSet(body)
	if err != nil {
		return nil, quotes.NewLoadError(KindHTTP, "decode", err)
	}
	return set, nil
}

func (l *HTTPLoader) Close() error {
	if l.Client != nil {
		l.Client.CloseIdleConnections()
	}
	return nil
}
