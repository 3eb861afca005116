package cli

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"tradeconsole/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// orderColumns - поля ордера Bybit в таблице открытых ордеров
var orderColumns = []string{"orderId", "symbol", "side", "orderType", "price", "qty", "orderStatus"}

func (c *CLI) newDashboardCmd() *cobra.Command {
	var query models.DashboardQuery
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show API key info, balances and open orders",
		Long: `Load the three dashboard queries in parallel. A failed query is reported
in its own section and does not hide the others.

Examples:
  tradectl dashboard
  tradectl dashboard --account-type CONTRACT --symbol ETHUSDT --category linear
  tradectl dashboard --json`,
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}

			view, err := a.Dashboard.Load(cmd.Context(), query)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.printer.Out())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return c.renderDashboard(view)
		},
	}

	cmd.Flags().StringVar(&query.AccountType, "account-type", models.DefaultAccountType, "wallet account type")
	cmd.Flags().StringVar(&query.Symbol, "symbol", models.DefaultSymbol, "order symbol")
	cmd.Flags().StringVar(&query.Category, "category", models.DefaultCategory, "order category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (c *CLI) renderDashboard(view *models.DashboardView) error {
	q := view.Query

	c.printer.Header("API key")
	if !c.renderError(view.KeyInfo) {
		if err := c.renderFields(view.KeyInfo.Data); err != nil {
			return err
		}
	}

	c.printer.Header(fmt.Sprintf("Balances (%s)", q.AccountType))
	if !c.renderError(view.Balances) {
		out, err := json.MarshalIndent(view.Balances.Data, "", "  ")
		if err != nil {
			return err
		}
		c.printer.Print("%s", out)
	}

	c.printer.Header(fmt.Sprintf("Open orders (%s %s)", q.Symbol, q.Category))
	if !c.renderError(view.OpenOrders) {
		if err := c.renderOrders(view.OpenOrders.Data); err != nil {
			return err
		}
	}

	if view.KeyInfo.Error != "" || view.Balances.Error != "" || view.OpenOrders.Error != "" {
		return errReported
	}
	return nil
}

// renderError печатает ошибку запроса; true, если она была
func (c *CLI) renderError(qv models.QueryView) bool {
	if qv.Error == "" {
		return false
	}
	c.printer.Error("%s", qv.Error)
	return true
}

// renderFields - скалярные поля объекта ключом и значением
func (c *CLI) renderFields(data interface{}) error {
	obj := unwrapEnvelope(asObject(data))

	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := NewTable(c.printer.Out(), []string{"Field", "Value"}, c.printer.IsQuiet())
	for _, k := range keys {
		table.AddRow(k, fmt.Sprint(obj[k]))
	}
	return table.Render()
}

func (c *CLI) renderOrders(data interface{}) error {
	orders, _ := data.([]models.Order)
	if len(orders) == 0 {
		c.printer.Info("No open orders")
		return nil
	}

	table := NewTable(c.printer.Out(), orderColumns, c.printer.IsQuiet())
	for _, o := range orders {
		row := make([]string, len(orderColumns))
		for i, col := range orderColumns {
			if v, ok := o[col]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		table.AddRow(row...)
	}
	return table.Render()
}

// unwrapEnvelope спускается через info/result/data до объекта с полями ключа
func unwrapEnvelope(obj map[string]interface{}) map[string]interface{} {
	for {
		next, found := obj, false
		for _, nested := range []string{"info", "result", "data"} {
			if inner, ok := obj[nested].(map[string]interface{}); ok {
				next, found = inner, true
				break
			}
		}
		if !found {
			return obj
		}
		obj = next
	}
}

func asObject(data interface{}) map[string]interface{} {
	switch v := data.(type) {
	case models.Payload:
		return v
	case map[string]interface{}:
		return v
	}
	return map[string]interface{}{}
}
