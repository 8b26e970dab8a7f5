package buildinfo

import (
	"time"

	"github.com/google/uuid"

	"github.com/jira-jenkins-integ/pkg/webhook"
)

const (
	schemaVersion = "1.0"
	productName   = "jenkins"
)

// PipelineID derives a stable pipeline id from the job's full name.
func PipelineID(jobName string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(jobName)).String()
}

// NewBuildEvent assembles the webhook payload for req on the site with cloudID.
func NewBuildEvent(req Request, cloudID string, issueKeys []string, now time.Time) webhook.BuildEvent {
	run := req.Run()
	now = now.UTC()

	build := webhook.Build{
		SchemaVersion:        schemaVersion,
		PipelineID:           PipelineID(run.JobName),
		BuildNumber:          run.BuildNumber,
		UpdateSequenceNumber: now.UnixMilli(),
		DisplayName:          run.Name(),
		Label:                req.Branch(),
		URL:                  run.URL,
		State:                run.State(),
		LastUpdated:          now,
		IssueKeys:            issueKeys,
	}
	if build.IssueKeys == nil {
		build.IssueKeys = []string{}
	}

	if run.CommitSHA != "" || req.Branch() != "" {
		ref := webhook.Reference{}
		if run.CommitSHA != "" {
			ref.Commit = &webhook.Commit{ID: run.CommitSHA, RepositoryURI: run.RepositoryURL}
		}
		if req.Branch() != "" {
			ref.Ref = &webhook.Ref{Name: req.Branch(), URI: run.RepositoryURL}
		}
		build.References = []webhook.Reference{ref}
	}

	return webhook.BuildEvent{
		RequestType:      webhook.RequestTypeEvent,
		EventType:        webhook.EventTypeBuild,
		CloudID:          cloudID,
		PipelineName:     run.JobName,
		Status:           build.State,
		LastUpdated:      now,
		Builds:           []webhook.Build{build},
		ProviderMetadata: webhook.ProviderMetadata{Product: productName},
	}
}
