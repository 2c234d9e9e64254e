// Command envtool bootstraps and checks the developer .env file and mints
// session tokens for local testing.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/calendar-preferences/internal/envfile"
	"github.com/iliyamo/calendar-preferences/internal/model"
	"github.com/iliyamo/calendar-preferences/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:          "envtool",
		Short:        "Manage the local .env file",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", ".", "directory holding .env and .env.example")

	root.AddCommand(
		initCmd(&dir),
		secretCmd(&dir),
		setDBURLCmd(&dir),
		dbURLCmd(&dir),
		checkCmd(&dir),
		tokenCmd(),
	)
	return root
}

func initCmd(dir *string) *cobra.Command {
	var dbURL string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .env from .env.example and fill in generated values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := envfile.Init(*dir, dbURL)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Created {
				fmt.Fprintf(out, "created %s from %s\n", res.Path, envfile.ExampleFile)
			}
			if res.SecretSet {
				fmt.Fprintln(out, "generated SESSION_SECRET")
			}
			if res.DatabaseURLSet {
				fmt.Fprintln(out, "set DATABASE_URL")
			}
			fmt.Fprintln(out, "next: envtool check")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "database-url", "", "DATABASE_URL to use when missing or a placeholder")
	return cmd
}

func secretCmd(dir *string) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random SESSION_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := envfile.GenerateSecret()
			if err != nil {
				return err
			}
			if !write {
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			}
			path := filepath.Join(*dir, envfile.EnvFile)
			if err := envfile.SetFile(path, "SESSION_SECRET", secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote SESSION_SECRET to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "store the secret in .env instead of printing it")
	return cmd
}

func setDBURLCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-db-url <url>",
		Short: "Set DATABASE_URL in .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeDBURL(cmd, *dir, args[0])
		},
	}
}

func dbURLCmd(dir *string) *cobra.Command {
	var scheme, user, password, host, port, name string
	var write bool
	cmd := &cobra.Command{
		Use:   "db-url",
		Short: "Build a connection URL with the password escaped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := envfile.BuildDBURL(scheme, user, password, host, port, name)
			if !write {
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			}
			return writeDBURL(cmd, *dir, u)
		},
	}
	f := cmd.Flags()
	f.StringVar(&scheme, "scheme", "postgresql", "URL scheme")
	f.StringVar(&user, "user", "postgres", "database user")
	f.StringVar(&password, "password", "", "database password (escaped in the output)")
	f.StringVar(&host, "host", "localhost", "database host")
	f.StringVar(&port, "port", "5432", "database port")
	f.StringVar(&name, "name", "postgres", "database name")
	f.BoolVar(&write, "write", false, "store the URL in .env as DATABASE_URL")
	return cmd
}

func writeDBURL(cmd *cobra.Command, dir, raw string) error {
	if envfile.SuspiciousURL(raw) {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: connection string has more than one '@'; the password may need escaping (see envtool db-url)")
	}
	path := filepath.Join(dir, envfile.EnvFile)
	if err := envfile.SetFile(path, "DATABASE_URL", raw); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated DATABASE_URL in %s\n", path)
	return nil
}

func checkCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify required variables are set to real values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := envfile.Check(*dir, envfile.RequiredVars)
			if err != nil {
				return fmt.Errorf("%w: copy %s to %s first", err, envfile.ExampleFile, envfile.EnvFile)
			}
			fmt.Fprint(cmd.OutOrStdout(), rep.String())
			if !rep.OK() {
				return fmt.Errorf("environment incomplete; generate a secret with: envtool secret --write")
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var secret, sub, email, name string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("SESSION_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("SESSION_SECRET is not set; pass --secret")
			}
			tok, err := utils.NewSessionToken(secret, model.Identity{ID: sub, Email: email, Name: name}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "signing secret (defaults to $SESSION_SECRET)")
	f.StringVar(&sub, "sub", "", "user id")
	f.StringVar(&email, "email", "", "optional email claim")
	f.StringVar(&name, "name", "", "optional name claim")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
