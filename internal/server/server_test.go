package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jira-jenkins-integ/internal/config"
	"github.com/jira-jenkins-integ/internal/descriptor"
	"github.com/jira-jenkins-integ/internal/secret"
	"github.com/jira-jenkins-integ/internal/site"
	"github.com/jira-jenkins-integ/internal/step"
)

type fakeResolver struct {
	calls int
}

func (f *fakeResolver) CloudID(_ context.Context, siteURL string) (string, bool, error) {
	f.calls++
	if siteURL == "https://foo.atlassian.net" {
		return "cloud-foo", true, nil
	}
	return "", false, nil
}

type siteList []site.SiteConfig

func (s siteList) Sites() []site.SiteConfig { return s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *fakeResolver, *bool) {
	t.Helper()
	store := secret.NewStaticStore([]config.CredentialConfig{
		{ID: "cred", Domain: config.AtlassianAPIURL, Secret: "s"},
	})
	resolver := &fakeResolver{}
	sites := siteList{site.NewSiteConfig("foo.atlassian.net", "https://jenkins/x?jenkins_server_uuid=u", "cred")}
	desc := descriptor.New(resolver, store, store, sites, discardLogger())

	stepCalled := false
	stepHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		stepCalled = true
		w.WriteHeader(http.StatusOK)
	})

	return New(config.ServerConfig{Address: ":0"}, desc, stepHandler, "admin-token", discardLogger()), resolver, &stepCalled
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCheckEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/descriptor/site/checkSite?value=foo.atlassian.net", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var v site.Validation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.IsOK())

	rec = do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/descriptor/site/checkWebhookUrl?value=https://x", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, site.KindError, v.Kind)
	assert.Equal(t, "Webhook URL needs to contain query parameter 'jenkins_server_uuid'.", v.Message)
}

func TestFillCredentialsIdItems(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/descriptor/site/fillCredentialsIdItems?credentialsId=current", nil)
	rec := do(t, srv.Handler(), req)
	var items []secret.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, []secret.Item{{Name: "current", Value: "current"}}, items)

	req = httptest.NewRequest(http.MethodGet, "/descriptor/site/fillCredentialsIdItems", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = do(t, srv.Handler(), req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, []secret.Item{{Name: "- none -", Value: ""}, {Name: "cred", Value: "cred"}}, items)
}

func testConnectionRequest(token string) *http.Request {
	form := url.Values{
		"site":          {"foo.atlassian.net"},
		"webhookUrl":    {"https://jenkins/x?jenkins_server_uuid=u"},
		"credentialsId": {"cred"},
	}
	req := httptest.NewRequest(http.MethodPost, "/descriptor/site/testConnection", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestTestConnectionForbidden(t *testing.T) {
	srv, resolver, _ := newTestServer(t)

	rec := do(t, srv.Handler(), testConnectionRequest(""))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv.Handler(), testConnectionRequest("wrong"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, resolver.calls)
}

func TestTestConnectionAdmin(t *testing.T) {
	srv, resolver, _ := newTestServer(t)

	rec := do(t, srv.Handler(), testConnectionRequest("admin-token"))

	require.Equal(t, http.StatusOK, rec.Code)
	var v site.Validation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, site.OK("Successfully validated site credentials"), v)
	assert.Equal(t, 1, resolver.calls)
}

func TestFillSiteItems(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/descriptor/step/fillSiteItems", nil))

	var items []step.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, []step.Item{
		{Name: "All", Value: ""},
		{Name: "foo.atlassian.net", Value: "foo.atlassian.net"},
	}, items)
}

func TestStepRouteMounted(t *testing.T) {
	srv, _, called := newTestServer(t)

	rec := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/steps/jiraSendBuildInfo", strings.NewReader("{}")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, srv.Run(ctx))
}
