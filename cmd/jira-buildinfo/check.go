package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jira-jenkins-integ/internal/descriptor"
	"github.com/jira-jenkins-integ/internal/site"
)

type checkResult struct {
	passed   int
	errors   int
	warnings int
}

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and test the connection to every site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Checking configuration...")
			fmt.Fprintln(out)

			configPath := v.GetString("config")
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				return fmt.Errorf("configuration file not found: %s", configPath)
			}

			a, err := loadApp(v, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			result := &checkResult{}
			fmt.Fprintln(out, "✓ Configuration file loaded and validated")
			result.passed++

			sites := a.cfg.Sites()
			if len(sites) == 0 {
				fmt.Fprintln(out, "⚠ Warning: No sites configured, build info will not be sent anywhere")
				result.warnings++
			}

			desc := a.newDescriptor()
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Checking sites:")
			for _, s := range sites {
				fmt.Fprintf(out, "  Site: %s\n", s.Site)
				checkSite(cmd.Context(), out, desc, s, result)
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Summary: %d checks passed, %d errors, %d warnings\n", result.passed, result.errors, result.warnings)

			if result.errors > 0 {
				return fmt.Errorf("%d check(s) failed", result.errors)
			}
			return nil
		},
	}
}

func checkSite(ctx context.Context, out io.Writer, desc *descriptor.Descriptor, s site.SiteConfig, result *checkResult) {
	report(out, desc.CheckSite(s.Site), "Site name is valid", result)
	report(out, desc.CheckWebhookURL(s.WebhookURL), "Webhook URL is valid", result)

	v, err := desc.TestConnection(ctx, true, s.Site, s.WebhookURL, s.CredentialsID)
	if err != nil {
		fmt.Fprintf(out, "  ✗ Connection test failed: %v\n", err)
		result.errors++
		return
	}
	if !v.IsOK() {
		fmt.Fprintf(out, "  ✗ %s\n", v.Message)
		result.errors++
		return
	}
	fmt.Fprintf(out, "  ✓ %s\n", v.Message)
	result.passed++
}

// report prints a field check. Invalid fields are warnings because dispatch does not
// validate them.
func report(out io.Writer, v site.Validation, okMessage string, result *checkResult) {
	if v.IsOK() {
		fmt.Fprintf(out, "  ✓ %s\n", okMessage)
		result.passed++
		return
	}
	fmt.Fprintf(out, "  ⚠ %s\n", v.Message)
	result.warnings++
}
