package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/comitanigiacomo/vibedesk-engine/internal/bootstrap"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
}

// resolve prompts for the password on in when it was not passed as a flag.
func (f *credentialFlags) resolve(in io.Reader, out io.Writer) error {
	if f.password != "" {
		return nil
	}
	_, _ = fmt.Fprint(out, "password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	f.password = strings.TrimSpace(line)
	if f.password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func newLoginCmd(flags *rootFlags) *cobra.Command {
	creds := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and sync this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := creds.resolve(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				uc, err := app.Login(ctx, creds.email, creds.password)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", uc.Email)
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newRegisterCmd(flags *rootFlags) *cobra.Command {
	creds := &credentialFlags{}
	var name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sync this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := creds.resolve(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				uc, err := app.Register(ctx, creds.email, creds.password, name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "account created, signed in as %s\n", uc.Email)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Stop syncing this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.Logout(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				uc := app.User(ctx)
				if !uc.SignedIn() {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
					return nil
				}
				plan := "free"
				if app.Sync.IsPremium(ctx) {
					plan = "premium"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", uc.Email, uc.UserID, plan)
				return nil
			})
		},
	}
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the device configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set api_url, session_minutes, log_level or bell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "api_url":
				cfg.APIURL = value
			case "session_minutes":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("session_minutes must be a number: %w", err)
				}
				cfg.SessionMinutes = n
			case "log_level":
				cfg.LogLevel = value
			case "bell":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("bell must be true or false: %w", err)
				}
				cfg.Bell = b
			default:
				return fmt.Errorf("unknown config key %q", key)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return cfg.Save()
		},
	})
	return cfgCmd
}
