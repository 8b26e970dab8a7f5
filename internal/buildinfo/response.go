package buildinfo

import "strings"

// Status is the outcome of sending build information to one site.
type Status string

const (
	StatusSuccessBuildAccepted      Status = "SUCCESS_BUILD_ACCEPTED"
	StatusSkippedIssueKeysNotFound  Status = "SKIPPED_ISSUE_KEYS_NOT_FOUND"
	StatusFailureSiteConfigNotFound Status = "FAILURE_SITE_CONFIG_NOT_FOUND"
	StatusFailureSiteNotFound       Status = "FAILURE_SITE_NOT_FOUND"
	StatusFailureSecretNotFound     Status = "FAILURE_SECRET_NOT_FOUND"
	StatusFailureBuildRejected      Status = "FAILURE_BUILD_REJECTED"
	StatusFailureUnknownIssueKey    Status = "FAILURE_UNKNOWN_ISSUE_KEY"
	StatusFailureUnexpectedResponse Status = "FAILURE_UNEXPECTED_RESPONSE"
)

// IsFailure reports whether the status is one of the FAILURE variants.
func (s Status) IsFailure() bool {
	return strings.HasPrefix(string(s), "FAILURE_")
}

// Response is the result for one targeted site.
type Response struct {
	Site    string `json:"jiraSite"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// NewResponse builds a response.
func NewResponse(site string, status Status, message string) Response {
	return Response{Site: site, Status: status, Message: message}
}

// AnyFailure reports whether at least one response failed.
func AnyFailure(responses []Response) bool {
	for _, r := range responses {
		if r.Status.IsFailure() {
			return true
		}
	}
	return false
}
