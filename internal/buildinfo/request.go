// Package buildinfo shapes the build information sent to Jira: the per-invocation
// request, the per-site response and the webhook payload.
package buildinfo

import (
	"regexp"
)

// Request is one invocation of the build info step. It is not validated; an unknown
// site filter is resolved by the sender.
type Request struct {
	site   string
	branch string
	run    RunMetadata
}

// NewRequest builds a request. An empty site targets every configured site.
func NewRequest(site, branch string, run RunMetadata) Request {
	return Request{site: site, branch: branch, run: run}
}

// Site returns the site filter and whether one was given.
func (r Request) Site() (string, bool) {
	return r.site, r.site != ""
}

// Branch returns the branch name, possibly empty.
func (r Request) Branch() string {
	return r.branch
}

// Run returns the metadata of the triggering run.
func (r Request) Run() RunMetadata {
	return r.run
}

// IssueKeys returns the Jira issue keys referenced by the branch and change title.
func (r Request) IssueKeys() []string {
	return ExtractIssueKeys(r.branch + " " + r.run.ChangeTitle)
}

var issueKeyPattern = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)

// ExtractIssueKeys returns the unique issue keys in text in order of first occurrence.
func ExtractIssueKeys(text string) []string {
	matches := issueKeyPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var result []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		result = append(result, m)
	}
	return result
}
