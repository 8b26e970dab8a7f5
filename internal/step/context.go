package step

import (
	"context"
	"io"
	"log/slog"

	"github.com/jira-jenkins-integ/internal/buildinfo"
)

// RunEnricher completes run metadata from Jenkins itself.
type RunEnricher interface {
	Enrich(ctx context.Context, run buildinfo.RunMetadata) (buildinfo.RunMetadata, error)
}

// EnvContext is the context of a step run from a shell inside a Jenkins build: the
// console is Out and the run is described by the build environment.
type EnvContext struct {
	Out      io.Writer
	Lookup   buildinfo.LookupFunc
	Enricher RunEnricher
	Log      *slog.Logger
}

func (c *EnvContext) Logger() (io.Writer, error) {
	return c.Out, nil
}

// Run reads the run from the environment. Enrichment failures are logged and the
// environment data is used as is.
func (c *EnvContext) Run(ctx context.Context) (buildinfo.RunMetadata, error) {
	run, err := buildinfo.RunFromEnv(c.Lookup)
	if err != nil {
		return buildinfo.RunMetadata{}, err
	}
	if c.Enricher == nil {
		return run, nil
	}

	enriched, err := c.Enricher.Enrich(ctx, run)
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("enrich run from jenkins", slog.String("job", run.JobName), slog.String("error", err.Error()))
		}
		return run, nil
	}
	return enriched, nil
}

func (c *EnvContext) DefaultBranch() string {
	return buildinfo.BranchFromEnv(c.Lookup)
}

// StaticContext serves a run described by the caller, as in an HTTP invocation.
type StaticContext struct {
	Out      io.Writer
	Metadata buildinfo.RunMetadata
}

func (c *StaticContext) Logger() (io.Writer, error) {
	return c.Out, nil
}

func (c *StaticContext) Run(context.Context) (buildinfo.RunMetadata, error) {
	if err := c.Metadata.Validate(); err != nil {
		return buildinfo.RunMetadata{}, err
	}
	return c.Metadata, nil
}
