// Package descriptor backs the site configuration form: field checks, credential and
// site listings, and the connection test.
package descriptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jira-jenkins-integ/internal/secret"
	"github.com/jira-jenkins-integ/internal/site"
	"github.com/jira-jenkins-integ/internal/step"
	"github.com/jira-jenkins-integ/internal/tenant"
)

// ErrForbidden is returned when a non-administrator calls an admin-only operation.
var ErrForbidden = errors.New("administer permission required")

// Messages returned by the connection test.
const (
	MsgSiteNotResolved = "Failed to resolve Jira Cloud site: "
	MsgSecretNotFound  = "Failed to retrieve secret"
	MsgValidated       = "Successfully validated site credentials"
)

// SiteSource provides the configured sites.
type SiteSource interface {
	Sites() []site.SiteConfig
}

// Descriptor serves the configuration form.
type Descriptor struct {
	resolver tenant.Resolver
	secrets  secret.Retriever
	lister   secret.Lister
	sites    SiteSource
	logger   *slog.Logger
}

func New(resolver tenant.Resolver, secrets secret.Retriever, lister secret.Lister, sites SiteSource, logger *slog.Logger) *Descriptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Descriptor{
		resolver: resolver,
		secrets:  secrets,
		lister:   lister,
		sites:    sites,
		logger:   logger,
	}
}

// CheckSite validates the site field.
func (d *Descriptor) CheckSite(value string) site.Validation {
	return site.CheckSite(value)
}

// CheckWebhookURL validates the webhook URL field.
func (d *Descriptor) CheckWebhookURL(value string) site.Validation {
	return site.CheckWebhookURL(value)
}

// CredentialItems lists the credentials the selector may offer.
func (d *Descriptor) CredentialItems(ctx context.Context, isAdmin bool, current string) ([]secret.Item, error) {
	return secret.ListCredentialItems(ctx, d.lister, isAdmin, current)
}

// SiteItems lists the sites the step selector may offer.
func (d *Descriptor) SiteItems() []step.Item {
	return step.SiteItems(d.sites.Sites())
}

// TestConnection checks that siteName resolves to a cloud id and that the credential
// exists. It changes nothing. webhookURL is accepted for form parity but not contacted.
func (d *Descriptor) TestConnection(ctx context.Context, isAdmin bool, siteName, webhookURL, credentialsID string) (site.Validation, error) {
	if !isAdmin {
		return site.Validation{}, ErrForbidden
	}

	siteName = strings.TrimSpace(siteName)
	logger := d.logger.With(slog.String("site", siteName))

	cloudID, ok, err := d.resolver.CloudID(ctx, site.NewSiteConfig(siteName, webhookURL, credentialsID).URL())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return site.Validation{}, fmt.Errorf("resolve cloud id: %w", ctxErr)
		}
		logger.Warn("cloud id lookup failed", slog.String("error", err.Error()))
	}
	if err != nil || !ok {
		return site.Error(MsgSiteNotResolved + siteName), nil
	}

	_, ok, err = d.secrets.SecretFor(ctx, credentialsID)
	if err != nil {
		logger.Warn("secret lookup failed", slog.String("error", err.Error()))
	}
	if err != nil || !ok {
		return site.Error(MsgSecretNotFound), nil
	}

	logger.Debug("connection test passed", slog.String("cloud_id", cloudID))
	return site.OK(MsgValidated), nil
}
