// Package webhook contains the payloads exchanged with the Jenkins app in Jira Cloud.
package webhook

import "time"

// Event types understood by the Jenkins app webhook.
const (
	RequestTypeEvent = "event"
	EventTypeBuild   = "build"
)

// Build states accepted by Jira.
const (
	StatePending    = "pending"
	StateInProgress = "in_progress"
	StateSuccessful = "successful"
	StateFailed     = "failed"
	StateCancelled  = "cancelled"
	StateUnknown    = "unknown"
)

// BuildEvent is the body posted to a site's webhook URL.
type BuildEvent struct {
	RequestType      string           `json:"requestType"`
	EventType        string           `json:"eventType"`
	CloudID          string           `json:"cloudId"`
	PipelineName     string           `json:"pipelineName"`
	Status           string           `json:"status"`
	LastUpdated      time.Time        `json:"lastUpdated"`
	Builds           []Build          `json:"builds"`
	ProviderMetadata ProviderMetadata `json:"providerMetadata"`
}

// Build describes a single pipeline run.
type Build struct {
	SchemaVersion        string      `json:"schemaVersion,omitempty"`
	PipelineID           string      `json:"pipelineId"`
	BuildNumber          int64       `json:"buildNumber"`
	UpdateSequenceNumber int64       `json:"updateSequenceNumber"`
	DisplayName          string      `json:"displayName"`
	Label                string      `json:"label,omitempty"`
	URL                  string      `json:"url"`
	State                string      `json:"state"`
	LastUpdated          time.Time   `json:"lastUpdated"`
	IssueKeys            []string    `json:"issueKeys"`
	References           []Reference `json:"references,omitempty"`
}

// Reference links a build to a commit and a branch.
type Reference struct {
	Commit *Commit `json:"commit,omitempty"`
	Ref    *Ref    `json:"ref,omitempty"`
}

// Commit identifies the revision that was built.
type Commit struct {
	ID            string `json:"id"`
	RepositoryURI string `json:"repositoryUri"`
}

// Ref identifies the branch that was built.
type Ref struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// ProviderMetadata names the product sending the event.
type ProviderMetadata struct {
	Product string `json:"product"`
}

// BuildKey identifies a build in Jira's response.
type BuildKey struct {
	PipelineID  string `json:"pipelineId"`
	BuildNumber int64  `json:"buildNumber"`
}

// RejectedBuild is a build Jira refused, with reasons.
type RejectedBuild struct {
	Key    BuildKey `json:"key"`
	Errors []Error  `json:"errors"`
}

// Error is a single rejection reason.
type Error struct {
	Message      string `json:"message"`
	ErrorTraceID string `json:"errorTraceId,omitempty"`
}

// BuildResponse is what the webhook answers with.
type BuildResponse struct {
	AcceptedBuilds   []BuildKey      `json:"acceptedBuilds"`
	RejectedBuilds   []RejectedBuild `json:"rejectedBuilds"`
	UnknownIssueKeys []string        `json:"unknownIssueKeys"`
}

// String returns the display name of the build, falling back to the pipeline id.
func (b Build) String() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.PipelineID
}
