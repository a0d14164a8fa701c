package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"market-depth/src/helpers"
	"market-depth/src/logger"
	"market-depth/src/models"
)

const defaultUserAgent = "market-depth/1.0"

// -----------------------------------------------------------------------------

type Manager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewManager(cfg *models.MConfig, log *logger.Logger) *Manager {
	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Manager{
		Config: cfg,
		Client: &http.Client{Timeout: timeout},
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and exponential backoff. Cancelling
// the context aborts the in-flight request and any retry wait immediately.
func (nm *Manager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i*i) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", finalUrl, nil)
		if err != nil {
			return nil, err
		}

		ua := nm.Config.Network.UserAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		req.Header.Set("User-Agent", ua)

		resp, err := nm.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode == 418 {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (status %d)", resp.StatusCode)
			nm.Logger.Warning("Request rate limited (%d), backing off", resp.StatusCode)
			continue
		}

		if resp.StatusCode != 200 {
			resp.Body.Close()
			lastErr = fmt.Errorf("bad status: %d", resp.StatusCode)
			nm.Logger.Info("Bad status %d for %s", resp.StatusCode, finalUrl)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		return body, nil
	}

	return nil, helpers.NewTransportError("max retries exceeded", lastErr)
}
