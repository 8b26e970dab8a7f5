package site

import (
	"net/url"
	"regexp"
	"strings"
)

// ServerUUIDParam is the query parameter the Jenkins app in Jira adds to webhook URLs.
const ServerUUIDParam = "jenkins_server_uuid"

var siteNamePattern = regexp.MustCompile(`(?i)^[a-z0-9][a-z0-9-]*\.(atlassian\.net|jira-dev\.com|jira\.com)$`)

// Kind is the outcome of a field check.
type Kind string

const (
	KindOK    Kind = "OK"
	KindError Kind = "ERROR"
)

// Validation is the result of checking a single configuration field.
type Validation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
}

// OK returns a successful validation with an optional message.
func OK(message string) Validation {
	return Validation{Kind: KindOK, Message: message}
}

// Error returns a failed validation carrying a user-facing message.
func Error(message string) Validation {
	return Validation{Kind: KindError, Message: message}
}

// IsOK reports whether the validation passed.
func (v Validation) IsOK() bool {
	return v.Kind == KindOK
}

// IsValidSiteName reports whether s looks like a Jira Cloud hostname.
func IsValidSiteName(s string) bool {
	return siteNamePattern.MatchString(strings.TrimSpace(s))
}

// IsValidWebhookURL reports whether s is an absolute http(s) URL.
func IsValidWebhookURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// ContainsValidQueryParams reports whether the webhook URL carries jenkins_server_uuid.
func ContainsValidQueryParams(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	_, ok := u.Query()[ServerUUIDParam]
	return ok
}

// ServerUUID returns the jenkins_server_uuid value of a webhook URL, if any.
func ServerUUID(webhookURL string) string {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(ServerUUIDParam)
}

// CheckSite validates the site field of the configuration form.
func CheckSite(value string) Validation {
	if value == "" {
		return Error("Site name can't be empty. Paste your Jira Cloud site name here.")
	}
	if !IsValidSiteName(value) {
		return Error("Site name is invalid. Paste a valid site name, e.g. sitename.atlassian.net.")
	}
	return OK("")
}

// CheckWebhookURL validates the webhook URL field of the configuration form.
// Syntax and the required query parameter are reported separately.
func CheckWebhookURL(value string) Validation {
	if value == "" {
		return Error("Webhook URL can't be blank. Paste it from the Jenkins app in Jira.")
	}
	if !IsValidWebhookURL(value) {
		return Error("Webhook URL is not a valid URL.")
	}
	if !ContainsValidQueryParams(value) {
		return Error("Webhook URL needs to contain query parameter '" + ServerUUIDParam + "'.")
	}
	return OK("")
}
