// Package site holds the Jira Cloud site configuration value and the advisory
// checks the configuration surfaces run against user-supplied fields.
package site

// DefaultSite is the placeholder offered to administrators in empty forms.
const DefaultSite = "sitename.atlassian.net"

// SiteConfig describes one Jira Cloud target for build information.
//
// Construction accepts any strings. CheckSite and CheckWebhookURL are advisory and a
// SiteConfig with an invalid webhook URL can still be stored and used for dispatch.
type SiteConfig struct {
	Site          string `yaml:"site" json:"site"`
	WebhookURL    string `yaml:"webhook_url" json:"webhookUrl"`
	CredentialsID string `yaml:"credentials_id" json:"credentialsId"`
}

// NewSiteConfig builds a SiteConfig without validating its fields.
func NewSiteConfig(site, webhookURL, credentialsID string) SiteConfig {
	return SiteConfig{
		Site:          site,
		WebhookURL:    webhookURL,
		CredentialsID: credentialsID,
	}
}

// Equal reports whether both configs carry the same field tuple.
func (c SiteConfig) Equal(other SiteConfig) bool {
	return c.Site == other.Site &&
		c.WebhookURL == other.WebhookURL &&
		c.CredentialsID == other.CredentialsID
}

// URL returns the https base URL of the site.
func (c SiteConfig) URL() string {
	return "https://" + c.Site
}
