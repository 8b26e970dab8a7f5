package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jira-jenkins-integ/internal/config"
	"github.com/jira-jenkins-integ/internal/secret"
)

func newCredentialsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage build info secrets stored in the system keyring",
	}
	cmd.AddCommand(
		newCredentialsSetCmd(v),
		newCredentialsDeleteCmd(v),
		newCredentialsListCmd(v),
	)
	return cmd
}

func openKeyring(v *viper.Viper) (*secret.KeyringStore, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return secret.OpenKeyring(cfg.Keyring)
}

func newCredentialsSetCmd(v *viper.Viper) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "set <credentials-id>",
		Short: "Store a secret, read from --value or the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret: %w", err)
				}
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return errors.New("secret is empty")
			}

			ks, err := openKeyring(v)
			if err != nil {
				return err
			}
			if err := ks.Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored secret %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "Secret value (default: read from stdin)")
	return cmd
}

func newCredentialsDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <credentials-id>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := openKeyring(v)
			if err != nil {
				return err
			}
			if err := ks.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted secret %s\n", args[0])
			return nil
		},
	}
}

func newCredentialsListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := openKeyring(v)
			if err != nil {
				return err
			}
			ids, err := ks.CredentialIDs(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			if len(ids) == 0 {
				fmt.Fprintln(os.Stderr, "no stored credentials")
			}
			return nil
		},
	}
}
