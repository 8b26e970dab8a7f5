package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jira-jenkins-integ/internal/buildinfo"
)

const defaultBuildTree = "number,displayName,result,building,timestamp,duration,url"

// Client reads build details from the Jenkins JSON API.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	buildTree  string
	httpClient *http.Client
}

// Build is the subset of a Jenkins build the client requests.
type Build struct {
	Number      int64  `json:"number"`
	DisplayName string `json:"displayName"`
	Result      string `json:"result"`
	Building    bool   `json:"building"`
	Timestamp   int64  `json:"timestamp"`
	Duration    int64  `json:"duration"`
	URL         string `json:"url"`
}

func NewClient(baseURL, username, apiToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		apiToken:   apiToken,
		buildTree:  defaultBuildTree,
		httpClient: httpClient,
	}
}

// BuildURL returns the URL of build number n of the job with the given full name.
func (c *Client) BuildURL(jobName string, n int64) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, part := range strings.Split(jobName, "/") {
		if part == "" {
			continue
		}
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(part))
	}
	b.WriteString("/")
	b.WriteString(strconv.FormatInt(n, 10))
	b.WriteString("/")
	return b.String()
}

// GetBuild fetches the build at buildURL.
func (c *Client) GetBuild(ctx context.Context, buildURL string) (*Build, error) {
	endpoint, err := url.Parse(strings.TrimRight(buildURL, "/") + "/api/json")
	if err != nil {
		return nil, fmt.Errorf("parse build url: %w", err)
	}

	query := endpoint.Query()
	query.Set("tree", c.buildTree)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.username != "" || c.apiToken != "" {
		req.SetBasicAuth(c.username, c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jenkins api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("jenkins api status: %s", resp.Status)
	}

	var build Build
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		return nil, fmt.Errorf("decode jenkins response: %w", err)
	}
	return &build, nil
}

// Enrich fills result, timing and display name of run from the Jenkins API.
// Fields Jenkins leaves empty keep their current value.
func (c *Client) Enrich(ctx context.Context, run buildinfo.RunMetadata) (buildinfo.RunMetadata, error) {
	buildURL := run.URL
	if buildURL == "" {
		if c.baseURL == "" {
			return run, fmt.Errorf("no build url for %s", run.Name())
		}
		buildURL = c.BuildURL(run.JobName, run.BuildNumber)
	}

	build, err := c.GetBuild(ctx, buildURL)
	if err != nil {
		return run, err
	}

	run.Building = build.Building
	run.Result = build.Result
	if build.DisplayName != "" {
		run.DisplayName = build.DisplayName
	}
	if build.URL != "" {
		run.URL = build.URL
	}
	if build.Timestamp > 0 {
		run.StartedAt = time.UnixMilli(build.Timestamp).UTC()
	}
	if build.Duration > 0 {
		run.Duration = time.Duration(build.Duration) * time.Millisecond
	}
	return run, nil
}
