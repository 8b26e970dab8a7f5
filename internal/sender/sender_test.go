package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jira-jenkins-integ/internal/buildinfo"
	"github.com/jira-jenkins-integ/internal/pipelinelog"
	"github.com/jira-jenkins-integ/internal/site"
	"github.com/jira-jenkins-integ/pkg/webhook"
)

type siteList []site.SiteConfig

func (s siteList) Sites() []site.SiteConfig {
	out := make([]site.SiteConfig, len(s))
	copy(out, s)
	return out
}

type mapSecrets map[string]string

func (m mapSecrets) SecretFor(_ context.Context, id string) (string, bool, error) {
	v, ok := m[id]
	return v, ok, nil
}

type mapResolver struct {
	ids map[string]string
	err error
}

func (m mapResolver) CloudID(_ context.Context, siteURL string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.ids[siteURL]
	return v, ok, nil
}

type captured struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (c *captured) add(r *http.Request, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, r)
	c.bodies = append(c.bodies, body)
}

func webhookServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.add(r, body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRun() buildinfo.RunMetadata {
	return buildinfo.RunMetadata{
		JobName:     "multibranch/TEST-1-feature",
		BuildNumber: 7,
		URL:         "https://jenkins.example/job/multibranch/7/",
		Result:      buildinfo.ResultSuccess,
	}
}

func newTestSender(sites siteList, secrets mapSecrets, resolver mapResolver, client *http.Client) *Sender {
	return New(sites, secrets, resolver, client, Options{Concurrency: 2, UserAgent: "test-agent"}, discardLogger())
}

func TestSendBuildInfoAllSitesInOrder(t *testing.T) {
	srv, calls := webhookServer(t, http.StatusOK, `{"acceptedBuilds":[{"pipelineId":"p","buildNumber":7}]}`)

	sites := siteList{
		site.NewSiteConfig("foo.atlassian.net", srv.URL+"/jira?jenkins_server_uuid=server-1", "foo-cred"),
		site.NewSiteConfig("bar.atlassian.net", srv.URL+"/jira?jenkins_server_uuid=server-1", "bar-cred"),
	}
	secrets := mapSecrets{"foo-cred": "foo-secret", "bar-cred": "bar-secret"}
	resolver := mapResolver{ids: map[string]string{
		"https://foo.atlassian.net": "cloud-foo",
		"https://bar.atlassian.net": "cloud-bar",
	}}

	s := newTestSender(sites, secrets, resolver, srv.Client())
	var out bytes.Buffer
	responses := s.SendBuildInfo(context.Background(),
		buildinfo.NewRequest("", "TEST-1-feature", testRun()), pipelinelog.New(&out, true))

	require.Len(t, responses, 2)
	assert.Equal(t, "foo.atlassian.net", responses[0].Site)
	assert.Equal(t, "bar.atlassian.net", responses[1].Site)
	for _, r := range responses {
		assert.Equal(t, buildinfo.StatusSuccessBuildAccepted, r.Status)
	}
	assert.Len(t, calls.requests, 2)
	assert.Contains(t, out.String(), "[Atlassian Cloud] DEBUG: sending build info for multibranch/TEST-1-feature #7")
}

func TestSendBuildInfoRequestShape(t *testing.T) {
	srv, calls := webhookServer(t, http.StatusOK, "")

	sites := siteList{site.NewSiteConfig("foo.atlassian.net", srv.URL+"/jira?jenkins_server_uuid=server-1", "foo-cred")}
	s := newTestSender(sites, mapSecrets{"foo-cred": "foo-secret"},
		mapResolver{ids: map[string]string{"https://foo.atlassian.net": "cloud-foo"}}, srv.Client())

	responses := s.SendBuildInfo(context.Background(),
		buildinfo.NewRequest("foo.atlassian.net", "TEST-1-feature", testRun()), nil)
	require.Len(t, responses, 1)
	assert.Equal(t, buildinfo.StatusSuccessBuildAccepted, responses[0].Status)

	require.Len(t, calls.requests, 1)
	r := calls.requests[0]
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
	assert.NotEmpty(t, r.Header.Get(headerRequestID))

	auth := r.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "JWT "))
	claims, err := VerifyPayload(strings.TrimPrefix(auth, "JWT "), calls.bodies[0], "foo-secret")
	require.NoError(t, err)
	assert.Equal(t, "server-1", claims.Issuer)

	var event webhook.BuildEvent
	require.NoError(t, json.Unmarshal(calls.bodies[0], &event))
	assert.Equal(t, "cloud-foo", event.CloudID)
	require.Len(t, event.Builds, 1)
	assert.Equal(t, []string{"TEST-1"}, event.Builds[0].IssueKeys)
	assert.Equal(t, int64(7), event.Builds[0].BuildNumber)
}

func TestSendBuildInfoUnknownSiteFilter(t *testing.T) {
	sites := siteList{site.NewSiteConfig("foo.atlassian.net", "https://jenkins.example/jira", "foo-cred")}
	s := newTestSender(sites, mapSecrets{}, mapResolver{}, nil)

	responses := s.SendBuildInfo(context.Background(),
		buildinfo.NewRequest("other.atlassian.net", "TEST-1", testRun()), nil)

	require.Len(t, responses, 1)
	assert.Equal(t, "other.atlassian.net", responses[0].Site)
	assert.Equal(t, buildinfo.StatusFailureSiteConfigNotFound, responses[0].Status)
}

func TestSendBuildInfoNoSites(t *testing.T) {
	s := newTestSender(nil, mapSecrets{}, mapResolver{}, nil)
	responses := s.SendBuildInfo(context.Background(), buildinfo.NewRequest("", "TEST-1", testRun()), nil)
	assert.Empty(t, responses)
}

func TestSendBuildInfoPerSiteFailures(t *testing.T) {
	srv, calls := webhookServer(t, http.StatusOK, "{}")

	sites := siteList{
		site.NewSiteConfig("nosecret.atlassian.net", srv.URL, "missing"),
		site.NewSiteConfig("nocloud.atlassian.net", srv.URL, "cred"),
		site.NewSiteConfig("ok.atlassian.net", srv.URL, "cred"),
	}
	resolver := mapResolver{ids: map[string]string{"https://ok.atlassian.net": "cloud-ok"}}
	s := newTestSender(sites, mapSecrets{"cred": "secret"}, resolver, srv.Client())

	responses := s.SendBuildInfo(context.Background(), buildinfo.NewRequest("", "TEST-1", testRun()), nil)

	require.Len(t, responses, 3)
	assert.Equal(t, buildinfo.StatusFailureSecretNotFound, responses[0].Status)
	assert.Equal(t, buildinfo.StatusFailureSiteNotFound, responses[1].Status)
	assert.Equal(t, buildinfo.StatusSuccessBuildAccepted, responses[2].Status)
	assert.Len(t, calls.requests, 1)
}

func TestSendBuildInfoResolverError(t *testing.T) {
	sites := siteList{site.NewSiteConfig("foo.atlassian.net", "https://jenkins.example", "cred")}
	s := newTestSender(sites, mapSecrets{"cred": "secret"}, mapResolver{err: errors.New("boom")}, nil)

	responses := s.SendBuildInfo(context.Background(), buildinfo.NewRequest("", "TEST-1", testRun()), nil)
	require.Len(t, responses, 1)
	assert.Equal(t, buildinfo.StatusFailureSiteNotFound, responses[0].Status)
}

func TestSendBuildInfoNoIssueKeys(t *testing.T) {
	srv, calls := webhookServer(t, http.StatusOK, "{}")
	sites := siteList{site.NewSiteConfig("foo.atlassian.net", srv.URL, "cred")}
	s := newTestSender(sites, mapSecrets{"cred": "secret"},
		mapResolver{ids: map[string]string{"https://foo.atlassian.net": "cloud"}}, srv.Client())

	run := testRun()
	run.JobName = "plain"
	responses := s.SendBuildInfo(context.Background(), buildinfo.NewRequest("", "main", run), nil)

	require.Len(t, responses, 1)
	assert.Equal(t, buildinfo.StatusSkippedIssueKeysNotFound, responses[0].Status)
	assert.Empty(t, calls.requests)
}

func TestSendBuildInfoResponseClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   buildinfo.Status
	}{
		{
			name:   "rejected",
			status: http.StatusOK,
			body:   `{"rejectedBuilds":[{"key":{"pipelineId":"p","buildNumber":7},"errors":[{"message":"bad state"}]}]}`,
			want:   buildinfo.StatusFailureBuildRejected,
		},
		{
			name:   "unknown keys only",
			status: http.StatusOK,
			body:   `{"unknownIssueKeys":["TEST-1"]}`,
			want:   buildinfo.StatusFailureUnknownIssueKey,
		},
		{
			name:   "unknown keys with accepted build",
			status: http.StatusOK,
			body:   `{"acceptedBuilds":[{"pipelineId":"p","buildNumber":7}],"unknownIssueKeys":["TEST-2"]}`,
			want:   buildinfo.StatusSuccessBuildAccepted,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "oops",
			want:   buildinfo.StatusFailureUnexpectedResponse,
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   "not json",
			want:   buildinfo.StatusFailureUnexpectedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := webhookServer(t, tt.status, tt.body)
			sites := siteList{site.NewSiteConfig("foo.atlassian.net", srv.URL, "cred")}
			s := newTestSender(sites, mapSecrets{"cred": "secret"},
				mapResolver{ids: map[string]string{"https://foo.atlassian.net": "cloud"}}, srv.Client())

			responses := s.SendBuildInfo(context.Background(), buildinfo.NewRequest("", "TEST-1", testRun()), nil)
			require.Len(t, responses, 1)
			assert.Equal(t, tt.want, responses[0].Status)
		})
	}
}

func TestVerifyPayloadRejectsTamperedBody(t *testing.T) {
	now := time.Now()
	token, err := SignPayload([]byte(`{"a":1}`), "secret", "server", now)
	require.NoError(t, err)

	_, err = VerifyPayload(token, []byte(`{"a":2}`), "secret")
	assert.Error(t, err)

	_, err = VerifyPayload(token, []byte(`{"a":1}`), "other")
	assert.Error(t, err)

	claims, err := VerifyPayload(token, []byte(`{"a":1}`), "secret")
	require.NoError(t, err)
	assert.Equal(t, "server", claims.Issuer)
}
