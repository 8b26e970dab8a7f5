// Package step implements the jiraSendBuildInfo pipeline step.
package step

import (
	"context"
	"fmt"
	"io"

	"github.com/jira-jenkins-integ/internal/buildinfo"
	"github.com/jira-jenkins-integ/internal/pipelinelog"
	"github.com/jira-jenkins-integ/internal/site"
)

// FunctionName is the name pipelines call the step by.
const FunctionName = "jiraSendBuildInfo"

// Step holds the step parameters. Both are optional.
type Step struct {
	Site   string `json:"site,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// Context is what a running pipeline exposes to the step.
type Context interface {
	Logger() (io.Writer, error)
	Run(ctx context.Context) (buildinfo.RunMetadata, error)
}

// BranchContext is implemented by contexts that know the branch being built.
type BranchContext interface {
	DefaultBranch() string
}

// Sender dispatches a request to the targeted sites.
type Sender interface {
	SendBuildInfo(ctx context.Context, req buildinfo.Request, log *pipelinelog.Logger) []buildinfo.Response
}

// Execution runs one invocation of the step.
type Execution struct {
	step   Step
	sc     Context
	sender Sender
	debug  bool
}

// NewExecution binds step to its pipeline context. debug enables debug lines in the
// console output.
func NewExecution(step Step, sc Context, sender Sender, debug bool) *Execution {
	return &Execution{step: step, sc: sc, sender: sender, debug: debug}
}

// Run sends the build info and returns the per-site responses unchanged. Failures
// reading the console or the run are returned as errors.
func (e *Execution) Run(ctx context.Context) ([]buildinfo.Response, error) {
	out, err := e.sc.Logger()
	if err != nil {
		return nil, fmt.Errorf("get console logger: %w", err)
	}
	run, err := e.sc.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	branch := e.step.Branch
	if branch == "" {
		if bc, ok := e.sc.(BranchContext); ok {
			branch = bc.DefaultBranch()
		}
	}

	plog := pipelinelog.New(out, e.debug)
	req := buildinfo.NewRequest(e.step.Site, branch, run)
	responses := e.sender.SendBuildInfo(ctx, req, plog)

	for _, r := range responses {
		plog.Debug("%s(%s): %s: %s", FunctionName, r.Site, r.Status, r.Message)
	}
	return responses, nil
}

// Item is an option of the site selector.
type Item struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SiteItems lists the site choices: "All" (every site) followed by each configured site.
func SiteItems(sites []site.SiteConfig) []Item {
	items := make([]Item, 0, len(sites)+1)
	items = append(items, Item{Name: "All", Value: ""})
	for _, s := range sites {
		items = append(items, Item{Name: s.Site, Value: s.Site})
	}
	return items
}
