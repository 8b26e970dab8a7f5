package buildinfo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jira-jenkins-integ/pkg/webhook"
)

// Jenkins run results.
const (
	ResultSuccess  = "SUCCESS"
	ResultUnstable = "UNSTABLE"
	ResultFailure  = "FAILURE"
	ResultAborted  = "ABORTED"
	ResultNotBuilt = "NOT_BUILT"
)

// ErrMissingRunInfo is returned when the build environment does not identify a run.
var ErrMissingRunInfo = errors.New("missing run information")

// RunMetadata is the part of a Jenkins run the sender needs.
type RunMetadata struct {
	JobName       string        `json:"jobName"`
	DisplayName   string        `json:"displayName,omitempty"`
	BuildNumber   int64         `json:"buildNumber"`
	Result        string        `json:"result,omitempty"`
	Building      bool          `json:"building,omitempty"`
	URL           string        `json:"url"`
	CommitSHA     string        `json:"commitSha,omitempty"`
	RepositoryURL string        `json:"repositoryUrl,omitempty"`
	ChangeTitle   string        `json:"changeTitle,omitempty"`
	StartedAt     time.Time     `json:"startedAt,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// Validate checks the fields every payload requires.
func (r RunMetadata) Validate() error {
	if r.JobName == "" {
		return fmt.Errorf("%w: job name", ErrMissingRunInfo)
	}
	if r.BuildNumber <= 0 {
		return fmt.Errorf("%w: build number", ErrMissingRunInfo)
	}
	return nil
}

// Name returns the display name of the run, "<job> #<n>" when Jenkins gave none.
func (r RunMetadata) Name() string {
	if r.DisplayName != "" && r.DisplayName != "#"+strconv.FormatInt(r.BuildNumber, 10) {
		return r.DisplayName
	}
	return fmt.Sprintf("%s #%d", r.JobName, r.BuildNumber)
}

// State maps the Jenkins result onto a Jira build state.
func (r RunMetadata) State() string {
	if r.Building || r.Result == "" {
		return webhook.StateInProgress
	}
	switch strings.ToUpper(r.Result) {
	case ResultSuccess, ResultUnstable:
		return webhook.StateSuccessful
	case ResultFailure:
		return webhook.StateFailed
	case ResultAborted:
		return webhook.StateCancelled
	default:
		return webhook.StateUnknown
	}
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

func get(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// RunFromEnv reads run metadata from the variables Jenkins exports to build steps.
// The result is left empty: a step inside a running build reports it in progress
// unless the caller knows better.
func RunFromEnv(lookup LookupFunc) (RunMetadata, error) {
	run := RunMetadata{
		JobName:       get(lookup, "JOB_NAME"),
		DisplayName:   get(lookup, "BUILD_DISPLAY_NAME"),
		URL:           get(lookup, "BUILD_URL"),
		CommitSHA:     get(lookup, "GIT_COMMIT"),
		RepositoryURL: get(lookup, "GIT_URL"),
		ChangeTitle:   get(lookup, "CHANGE_TITLE"),
		Building:      true,
	}

	if raw := get(lookup, "BUILD_NUMBER"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return RunMetadata{}, fmt.Errorf("parse BUILD_NUMBER %q: %w", raw, err)
		}
		run.BuildNumber = n
	}

	if err := run.Validate(); err != nil {
		return RunMetadata{}, err
	}
	return run, nil
}

// BranchFromEnv returns the branch Jenkins is building, if it exports one.
func BranchFromEnv(lookup LookupFunc) string {
	for _, key := range []string{"CHANGE_BRANCH", "BRANCH_NAME", "GIT_BRANCH"} {
		if v := get(lookup, key); v != "" {
			return strings.TrimPrefix(v, "origin/")
		}
	}
	return ""
}
