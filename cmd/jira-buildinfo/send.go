package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jira-jenkins-integ/internal/buildinfo"
	"github.com/jira-jenkins-integ/internal/jenkins"
	"github.com/jira-jenkins-integ/internal/pipelinelog"
	"github.com/jira-jenkins-integ/internal/step"
)

var errDispatchFailed = errors.New("build info was not accepted by every site")

func newSendCmd(v *viper.Viper) *cobra.Command {
	var (
		params      step.Step
		failOnError bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send build information of the current Jenkins build (" + step.FunctionName + ")",
		Long: "Reads the running build from the Jenkins environment and sends its build " +
			"information to the configured Jira Cloud sites.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(v, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			sc := &step.EnvContext{
				Out:    out,
				Lookup: os.LookupEnv,
				Log:    a.logger,
			}
			if a.cfg.Jenkins.BaseURL != "" {
				user, token := a.cfg.Jenkins.ResolveCredentials()
				sc.Enricher = jenkins.NewClient(a.cfg.Jenkins.BaseURL, user, token,
					newHTTPClient(a.cfg.Jenkins.SkipTLSVerify, 10*time.Second))
			}

			responses, err := step.NewExecution(params, sc, a.newSender(), a.debug).Run(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(responses); err != nil {
					return err
				}
			} else {
				plog := pipelinelog.New(out, false)
				for _, r := range responses {
					plog.Info("%s: %s: %s", r.Site, r.Status, r.Message)
				}
			}

			if buildinfo.AnyFailure(responses) {
				a.logger.Warn("build info dispatch had failures", slog.Int("sites", len(responses)))
				if failOnError {
					return errDispatchFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Site, "site", "", "Jira Cloud site to send to (default: all configured sites)")
	cmd.Flags().StringVar(&params.Branch, "branch", "", "Branch name (default: from the Jenkins environment)")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any site reports a failure")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the responses as JSON")
	return cmd
}
