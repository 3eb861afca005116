package cli

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newLoginCmd() *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Long: `Exchange username and password for an access token.

The password is read from the terminal without echo, or from stdin with --password-stdin.

Examples:
  tradectl login -u alice
  echo "$PASSWORD" | tradectl login -u alice --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}

			if username, err = c.readUsername(username, passwordStdin); err != nil {
				return err
			}
			password, err := c.readPassword(passwordStdin)
			if err != nil {
				return err
			}

			if _, err := a.Auth.Login(cmd.Context(), username, password); err != nil {
				return err
			}

			c.printer.Success("Logged in as %s", username)
			c.printer.Info("Next: tradectl onboard test --api-key <key>")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (c *CLI) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			if err := a.Auth.Logout(); err != nil {
				return err
			}
			c.printer.Success("Logged out")
			c.printer.Info("Log in again with: tradectl login")
			return nil
		},
	}
}

func (c *CLI) newRegisterCmd() *cobra.Command {
	var username, email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user on the remote service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}

			if username, err = c.readUsername(username, passwordStdin); err != nil {
				return err
			}
			password, err := c.readPassword(passwordStdin)
			if err != nil {
				return err
			}

			if err := a.Auth.Register(cmd.Context(), username, strings.TrimSpace(email), password); err != nil {
				return err
			}
			c.printer.Success("User %s registered", username)
			c.printer.Info("Next: tradectl login -u %s", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email (optional)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// readUsername берет имя из флага или спрашивает его.
// С --password-stdin stdin занят паролем, поэтому имя обязательно во флаге.
func (c *CLI) readUsername(flag string, passwordStdin bool) (string, error) {
	if flag != "" {
		return strings.TrimSpace(flag), nil
	}
	if passwordStdin {
		return "", errors.New("--password-stdin requires --username")
	}
	name, err := c.opts.Prompt.ReadLine("Username: ")
	return strings.TrimSpace(name), err
}

// readPassword читает пароль из stdin (--password-stdin) или скрытым вводом
func (c *CLI) readPassword(fromStdin bool) (string, error) {
	if !fromStdin {
		return c.opts.Prompt.ReadSecret("Password: ")
	}
	line, err := bufio.NewReader(c.opts.In).ReadString('\n')
	if err != nil && line == "" {
		return "", ErrNoInput
	}
	return strings.TrimRight(line, "\r\n"), nil
}
