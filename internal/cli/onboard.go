package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tradeconsole/internal/onboarding"
)

// onboardAction - Test или Save контроллера
type onboardAction func(flow *onboarding.Controller, cmd *cobra.Command, apiKey, apiSecret string) (onboarding.State, error)

func (c *CLI) newOnboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Connect Bybit testnet API keys",
		Long: `Show whether testnet API keys are saved, test keys or save them.

The API secret is always read from the terminal without echo, or from stdin
with --api-secret-stdin. Keys are never written to local storage.

Examples:
  tradectl onboard
  tradectl onboard test --api-key KEY
  tradectl onboard save --api-key KEY`,
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOnboard(cmd, nil, "", false)
		},
	}

	cmd.AddCommand(
		c.newOnboardActionCmd("test", "Test API keys against the exchange", func(flow *onboarding.Controller, cmd *cobra.Command, apiKey, apiSecret string) (onboarding.State, error) {
			return flow.Test(cmd.Context(), apiKey, apiSecret)
		}),
		c.newOnboardActionCmd("save", "Save API keys on the remote service", func(flow *onboarding.Controller, cmd *cobra.Command, apiKey, apiSecret string) (onboarding.State, error) {
			return flow.Save(cmd.Context(), apiKey, apiSecret)
		}),
	)
	return cmd
}

func (c *CLI) newOnboardActionCmd(use, short string, action onboardAction) *cobra.Command {
	var apiKey string
	var secretStdin bool

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOnboard(cmd, action, apiKey, secretStdin)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Bybit testnet API key")
	cmd.Flags().BoolVar(&secretStdin, "api-secret-stdin", false, "read the API secret from stdin")
	return cmd
}

// runOnboard монтирует контроллер на время команды, загружает состояние и
// выполняет action, если ключи еще не сохранены
func (c *CLI) runOnboard(cmd *cobra.Command, action onboardAction, apiKey string, secretStdin bool) error {
	a, err := c.application()
	if err != nil {
		return err
	}

	flow := a.Onboarding
	flow.Mount(cmd.Context())
	defer flow.Close()

	st, err := flow.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	if st.LoadError != "" {
		c.printer.Error("%s", st.LoadError)
		return errReported
	}
	if action == nil || st.Phase == onboarding.PhaseAlreadyOnboarded {
		c.printState(st)
		if st.Phase == onboarding.PhaseAlreadyOnboarded && action != nil {
			c.printer.Info("Nothing to do: keys are already saved.")
		}
		return nil
	}

	if apiKey == "" && secretStdin {
		return errors.New("--api-secret-stdin requires --api-key")
	}
	if apiKey == "" {
		if apiKey, err = c.opts.Prompt.ReadLine("API key: "); err != nil {
			return err
		}
	}
	apiSecret, err := c.readSecret(secretStdin)
	if err != nil {
		return err
	}

	st, err = action(flow, cmd, strings.TrimSpace(apiKey), apiSecret)
	if err != nil {
		return err
	}
	c.printState(st)

	if st.Outcome == onboarding.OutcomeInvalid || st.Outcome == onboarding.OutcomeSaveFailed {
		return errReported
	}
	return nil
}

func (c *CLI) readSecret(fromStdin bool) (string, error) {
	if fromStdin {
		return c.readPassword(true)
	}
	return c.opts.Prompt.ReadSecret("API secret: ")
}

// printState печатает снимок состояния онбординга
func (c *CLI) printState(st onboarding.State) {
	message := st.Message
	if message == "" {
		message = onboarding.StateInfo(st.Key())
	}

	switch {
	case st.Phase == onboarding.PhaseAlreadyOnboarded,
		st.Outcome == onboarding.OutcomeValid:
		c.printer.Success("%s", message)
	case st.Outcome == onboarding.OutcomeInvalid,
		st.Outcome == onboarding.OutcomeSaveFailed:
		c.printer.Error("%s", message)
		if st.Reason != "" && !strings.Contains(message, st.Reason) {
			c.printer.Error("Reason: %s", st.Reason)
		}
	default:
		c.printer.Info("%s", message)
	}
	c.printer.Print("%s", c.printer.Dim("credentials: "+st.Presence.String()))
}
