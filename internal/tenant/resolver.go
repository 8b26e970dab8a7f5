// Package tenant resolves Jira Cloud site URLs to cloud (tenant) ids.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Resolver maps a site URL such as https://acme.atlassian.net to a cloud id.
// A site that does not exist is reported as found=false.
type Resolver interface {
	CloudID(ctx context.Context, siteURL string) (string, bool, error)
}

type tenantInfo struct {
	CloudID string `json:"cloudId"`
}

// HTTPResolver queries the public tenant info endpoint of a site.
type HTTPResolver struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPResolver creates a resolver. A nil client gets a 10 second timeout.
func NewHTTPResolver(httpClient *http.Client, logger *slog.Logger) *HTTPResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPResolver{httpClient: httpClient, logger: logger}
}

// CloudID implements Resolver.
func (r *HTTPResolver) CloudID(ctx context.Context, siteURL string) (string, bool, error) {
	endpoint := strings.TrimRight(siteURL, "/") + "/_edge/tenant_info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("tenant info request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		r.logger.Debug("site not found", slog.String("site_url", siteURL))
		return "", false, nil
	case resp.StatusCode >= 400:
		return "", false, fmt.Errorf("tenant info status: %s", resp.Status)
	}

	var info tenantInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", false, fmt.Errorf("decode tenant info: %w", err)
	}
	if info.CloudID == "" {
		return "", false, nil
	}
	return info.CloudID, true, nil
}
