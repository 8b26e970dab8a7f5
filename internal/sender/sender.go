// Package sender posts build information to the configured Jira Cloud sites.
package sender

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jira-jenkins-integ/internal/buildinfo"
	"github.com/jira-jenkins-integ/internal/pipelinelog"
	"github.com/jira-jenkins-integ/internal/secret"
	"github.com/jira-jenkins-integ/internal/site"
	"github.com/jira-jenkins-integ/internal/tenant"
	"github.com/jira-jenkins-integ/pkg/webhook"
)

const (
	headerRequestID = "X-Request-Id"
	tokenTTL        = 5 * time.Minute
	maxErrorBody    = 1 << 12
)

// SiteSource provides the configured sites. Sites must return a snapshot.
type SiteSource interface {
	Sites() []site.SiteConfig
}

// Options tune outbound behaviour.
type Options struct {
	// RateLimit caps webhook calls per second across all sites. Zero disables it.
	RateLimit   float64
	Concurrency int
	UserAgent   string
}

// Sender delivers build information to every targeted site and reports one
// response per site. Expected per-site failures become FAILURE responses.
type Sender struct {
	sites       SiteSource
	secrets     secret.Retriever
	resolver    tenant.Resolver
	httpClient  *http.Client
	limiter     *rate.Limiter
	concurrency int
	userAgent   string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a sender.
func New(sites SiteSource, secrets secret.Retriever, resolver tenant.Resolver, httpClient *http.Client, opts Options, logger *slog.Logger) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Sender{
		sites:       sites,
		secrets:     secrets,
		resolver:    resolver,
		httpClient:  httpClient,
		limiter:     limiter,
		concurrency: opts.Concurrency,
		userAgent:   opts.UserAgent,
		logger:      logger,
		now:         time.Now,
	}
}

// SendBuildInfo sends req to the sites it targets. Responses are returned in
// configuration order.
func (s *Sender) SendBuildInfo(ctx context.Context, req buildinfo.Request, plog *pipelinelog.Logger) []buildinfo.Response {
	if plog == nil {
		plog = pipelinelog.Discard()
	}

	targets := s.targets(req)
	if len(targets) == 0 {
		if name, ok := req.Site(); ok {
			return []buildinfo.Response{buildinfo.NewResponse(name, buildinfo.StatusFailureSiteConfigNotFound,
				"No config found for Jira Cloud site: "+name)}
		}
		plog.Debug("no Jira Cloud sites configured")
		return []buildinfo.Response{}
	}

	responses := make([]buildinfo.Response, len(targets))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			responses[i] = s.sendToSite(ctx, target, req, plog)
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

func (s *Sender) targets(req buildinfo.Request) []site.SiteConfig {
	sites := s.sites.Sites()
	name, ok := req.Site()
	if !ok {
		return sites
	}
	for _, cfg := range sites {
		if cfg.Site == name {
			return []site.SiteConfig{cfg}
		}
	}
	return nil
}

func (s *Sender) sendToSite(ctx context.Context, cfg site.SiteConfig, req buildinfo.Request, plog *pipelinelog.Logger) buildinfo.Response {
	logger := s.logger.With(slog.String("site", cfg.Site), slog.String("job", req.Run().JobName))

	secretValue, ok, err := s.secrets.SecretFor(ctx, cfg.CredentialsID)
	if err != nil {
		logger.Warn("secret lookup failed", slog.String("error", err.Error()))
	}
	if err != nil || !ok {
		return buildinfo.NewResponse(cfg.Site, buildinfo.StatusFailureSecretNotFound,
			"Secret not found for credentials id: "+cfg.CredentialsID)
	}

	cloudID, ok, err := s.resolver.CloudID(ctx, cfg.URL())
	if err != nil {
		logger.Warn("cloud id lookup failed", slog.String("error", err.Error()))
	}
	if err != nil || !ok {
		return buildinfo.NewResponse(cfg.Site, buildinfo.StatusFailureSiteNotFound,
			"Unable to get cloud id for Jira Cloud site: "+cfg.Site)
	}

	issueKeys := req.IssueKeys()
	if len(issueKeys) == 0 {
		return buildinfo.NewResponse(cfg.Site, buildinfo.StatusSkippedIssueKeysNotFound,
			"No issue keys found in branch name or change title")
	}
	plog.Debug("sending build info for %s to %s with issue keys %s",
		req.Run().Name(), cfg.Site, strings.Join(issueKeys, ","))

	event := buildinfo.NewBuildEvent(req, cloudID, issueKeys, s.now())
	body, err := json.Marshal(event)
	if err != nil {
		return buildinfo.NewResponse(cfg.Site, buildinfo.StatusFailureUnexpectedResponse,
			"Failed to encode build info: "+err.Error())
	}

	result, err := s.post(ctx, cfg, secretValue, body)
	if err != nil {
		logger.Warn("build info request failed", slog.String("error", err.Error()))
		return buildinfo.NewResponse(cfg.Site, buildinfo.StatusFailureUnexpectedResponse, err.Error())
	}
	logger.Debug("build info sent",
		slog.Int("accepted", len(result.AcceptedBuilds)),
		slog.Int("rejected", len(result.RejectedBuilds)),
	)
	return classify(cfg.Site, result)
}

func (s *Sender) post(ctx context.Context, cfg site.SiteConfig, secretValue string, body []byte) (*webhook.BuildResponse, error) {
	token, err := SignPayload(body, secretValue, site.ServerUUID(cfg.WebhookURL), s.now())
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "JWT "+token)
	httpReq.Header.Set(headerRequestID, uuid.NewString())
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	var result webhook.BuildResponse
	if len(bytes.TrimSpace(data)) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode webhook response: %w", err)
	}
	return &result, nil
}

func classify(siteName string, result *webhook.BuildResponse) buildinfo.Response {
	if len(result.RejectedBuilds) > 0 {
		var msgs []string
		for _, rb := range result.RejectedBuilds {
			for _, e := range rb.Errors {
				msgs = append(msgs, e.Message)
			}
		}
		return buildinfo.NewResponse(siteName, buildinfo.StatusFailureBuildRejected,
			"The build info was rejected: "+strings.Join(msgs, "; "))
	}
	if len(result.UnknownIssueKeys) > 0 && len(result.AcceptedBuilds) == 0 {
		return buildinfo.NewResponse(siteName, buildinfo.StatusFailureUnknownIssueKey,
			"Unknown issue keys: "+strings.Join(result.UnknownIssueKeys, ", "))
	}
	return buildinfo.NewResponse(siteName, buildinfo.StatusSuccessBuildAccepted,
		"The build info has been sent to Jira Cloud")
}

// PayloadClaims are the JWT claims binding a token to a request body.
type PayloadClaims struct {
	BodyHash string `json:"qsh"`
	jwt.RegisteredClaims
}

// SignPayload returns an HS256 token over the SHA-256 of body, issued by the Jenkins
// server identified by serverUUID.
func SignPayload(body []byte, secretValue, serverUUID string, now time.Time) (string, error) {
	sum := sha256.Sum256(body)
	claims := PayloadClaims{
		BodyHash: hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    serverUUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretValue))
}

// VerifyPayload checks a token produced by SignPayload against body.
func VerifyPayload(token string, body []byte, secretValue string) (*PayloadClaims, error) {
	claims := &PayloadClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secretValue), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	sum := sha256.Sum256(body)
	if claims.BodyHash != hex.EncodeToString(sum[:]) {
		return nil, fmt.Errorf("body hash mismatch")
	}
	return claims, nil
}
