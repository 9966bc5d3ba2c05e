package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/session"
	"github.com/spf13/cobra"
)

const passwordEnv = "HOJACTL_PASSWORD"

func (g *globals) password(cmd *cobra.Command, flag, prompt string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return g.readSecret(cmd, prompt)
}

func printUser(cmd *cobra.Command, u *models.User) {
	if u == nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) role=%s\n", u.Identifier, u.Name, u.Role)
}

func newLoginCommand(env Env, g *globals) *cobra.Command {
	var pass string
	cmd := &cobra.Command{
		Use:   "login <identifier>",
		Short: "Log in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, false)
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := g.password(cmd, pass, "Password: ")
			if err != nil {
				return err
			}
			u, err := c.Session().Login(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			printUser(cmd, u)
			if c.Session().State().MustChangePassword {
				fmt.Fprintln(cmd.ErrOrStderr(), "password change required; run hojactl passwd")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pass, "password", "p", "", "password (or "+passwordEnv+", or prompt)")
	return cmd
}

func newRegisterCommand(env Env, g *globals) *cobra.Command {
	var name, pass string
	cmd := &cobra.Command{
		Use:   "register <identifier>",
		Short: "Create an account awaiting approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, false)
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := g.password(cmd, pass, "New password: ")
			if err != nil {
				return err
			}
			res, err := c.Session().Register(cmd.Context(), models.RegisterRequest{Identifier: args[0], Name: name, Password: p})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&pass, "password", "p", "", "password (or "+passwordEnv+", or prompt)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newWhoamiCommand(env Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			u, err := c.Session().RefreshUser(cmd.Context())
			if err != nil {
				return err
			}
			printUser(cmd, u)
			return nil
		},
	}
}

func newRefreshCommand(env Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a token refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			grant, err := c.Coordinator().Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed, expires in %ds\n", grant.ExpiresIn)
			return nil
		},
	}
}

func newLogoutCommand(env Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Session().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newPasswdCommand(env Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			cur, err := g.readSecret(cmd, "Current password: ")
			if err != nil {
				return err
			}
			next, err := g.readSecret(cmd, "New password: ")
			if err != nil {
				return err
			}
			err = c.Session().ChangePassword(cmd.Context(), cur, next)
			if errors.Is(err, session.ErrCurrentPasswordIncorrect) {
				return fmt.Errorf("current password is incorrect")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
}
