package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"tradeconsole/internal/guard"
)

// healthTimeout - ожидание ответа /api/health
const healthTimeout = 5 * time.Second

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show remote service health and session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
			defer cancel()

			table := NewTable(c.printer.Out(), []string{"", "Component", "State", "Detail"}, c.printer.IsQuiet())

			health, healthErr := a.Remote.Health(ctx)
			if healthErr != nil {
				table.AddRow(c.printer.StatusBadge("unreachable"), "remote", "unreachable", userMessage(healthErr))
			} else {
				detail := health.Status
				if detail == "" {
					detail = "ok"
				}
				table.AddRow(c.printer.StatusBadge("ok"), "remote", "ok", a.Remote.BaseURL()+" "+c.printer.Dim(detail))
			}

			if guard.StateOf(a.Session) == guard.Authenticated {
				table.AddRow(c.printer.StatusBadge("logged in"), "session", "logged in", "")
			} else {
				table.AddRow(c.printer.StatusBadge("none"), "session", "logged out", "tradectl login")
			}
			table.AddRow(c.printer.StatusBadge("none"), "storage", a.Config.Storage.Driver, "")

			if err := table.Render(); err != nil {
				return err
			}
			if healthErr != nil {
				return errReported
			}
			return nil
		},
	}
}
