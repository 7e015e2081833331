package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/immichup/internal/config"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func (a *app) newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage stored user credentials and server URLs",
	}
	cmd.AddCommand(a.newUserAddCmd())
	cmd.AddCommand(a.newUserListCmd())
	cmd.AddCommand(a.newUserDeleteCmd())
	cmd.AddCommand(a.newUserDefaultCmd())
	return cmd
}

func (a *app) newUserAddCmd() *cobra.Command {
	var (
		server     string
		key        string
		setDefault bool
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a new user configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if key == "" {
				// Keys are secrets: read without echo instead of taking
				// them from the argument list.
				fmt.Fprint(cmd.OutOrStdout(), "Enter API key: ")
				raw, err := readPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read API key: %w", err)
				}
				key = strings.TrimSpace(string(raw))
			}
			if key == "" {
				return fmt.Errorf("API key must not be empty")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.AddUser(name, config.Profile{
				ServerURL: strings.TrimRight(server, "/"),
				APIKey:    key,
			}, setDefault)
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %q added successfully.\n", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "Immich server URL")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Immich API key (prompted when omitted)")
	cmd.Flags().BoolVarP(&setDefault, "default", "d", false, "set this user as the default")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func (a *app) newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.Users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users configured.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Users:")
			for _, name := range sortedNames(cfg.Users) {
				marker := " "
				if name == cfg.CurrentUser {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), " %s %s: %s\n", marker, name, cfg.Users[name].ServerURL)
			}
			return nil
		},
	}
}

func (a *app) newUserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a user configuration by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.DeleteUser(args[0]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %q deleted.\n", args[0])
			return nil
		},
	}
}

func (a *app) newUserDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default NAME",
		Short: "Set a specific user as the default for uploads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.SetDefault(args[0]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default user set to %q.\n", args[0])
			return nil
		},
	}
}

func sortedNames(users map[string]config.Profile) []string {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
