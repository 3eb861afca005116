// Package cli - команды tradectl поверх того же клиентского ядра, что и консоль.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tradeconsole/internal/app"
	"tradeconsole/internal/config"
	"tradeconsole/internal/guard"
	"tradeconsole/internal/remote"
	"tradeconsole/internal/service"
	"tradeconsole/pkg/utils"
)

// errReported - ошибка уже показана пользователю, нужен только код выхода
var errReported = errors.New("command failed")

// ErrLoginRequired - защищенная команда без сессии
var ErrLoginRequired = errors.New("not logged in: run 'tradectl login' first")

// Options - зависимости CLI; нулевые поля заполняются значениями процесса
type Options struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Prompt Prompter

	LoadConfig func() (*config.Config, error)
	Build      func(cfg *config.Config, logger *utils.Logger) (*app.App, error)
	Logger     *utils.Logger
}

func (o Options) withDefaults() Options {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.Prompt == nil {
		o.Prompt = NewPrompter(o.In, o.Err)
	}
	if o.LoadConfig == nil {
		o.LoadConfig = config.Load
	}
	if o.Build == nil {
		o.Build = func(cfg *config.Config, logger *utils.Logger) (*app.App, error) {
			return app.Build(cfg, logger)
		}
	}
	return o
}

// CLI - дерево команд tradectl и его состояние на время одного запуска
type CLI struct {
	opts Options
	root *cobra.Command

	colorMode string
	quiet     bool
	logLevel  string

	cfg     *config.Config
	logger  *utils.Logger
	printer *Printer
	app     *app.App
}

// New собирает дерево команд
func New(opts Options) *CLI {
	c := &CLI{opts: opts.withDefaults()}

	c.root = &cobra.Command{
		Use:   "tradectl",
		Short: "Terminal client for the trading account service",
		Long: `tradectl logs in to the remote service, connects Bybit testnet API keys
and shows account data. The session token is stored the same way the console stores it.

Examples:
  tradectl login -u alice
  tradectl onboard test --api-key KEY
  tradectl dashboard --symbol ETHUSDT`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.init() },
	}
	c.root.SetIn(c.opts.In)
	c.root.SetOut(c.opts.Out)
	c.root.SetErr(c.opts.Err)

	flags := c.root.PersistentFlags()
	flags.StringVar(&c.colorMode, "color", "auto", "color output: auto, always, never")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "suppress informational output")
	flags.StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	c.root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newRegisterCmd(),
		c.newStatusCmd(),
		c.newOnboardCmd(),
		c.newDashboardCmd(),
	)
	return c
}

// Command - корневая команда (для тестов и документации)
func (c *CLI) Command() *cobra.Command {
	return c.root
}

// Execute запускает команду с аргументами args и освобождает ресурсы.
//
// Ошибка печатается здесь; вызывающему остается выбрать код выхода.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	c.root.SetArgs(args)
	err := c.root.ExecuteContext(ctx)
	c.close()

	if err == nil {
		return nil
	}
	if !errors.Is(err, errReported) {
		c.ensurePrinter().Error("%s", userMessage(err))
	}
	return err
}

// userMessage - текст ошибки для терминала
func userMessage(err error) string {
	if errors.Is(err, service.ErrLoginFailed) {
		return service.MsgLoginFailed
	}
	var stale *remote.StaleSessionError
	if errors.As(err, &stale) {
		return "session rejected by remote service: run 'tradectl login' again"
	}
	var re *remote.RemoteError
	if errors.As(err, &re) {
		return "remote service: " + re.Reason()
	}
	return err.Error()
}

// init читает конфигурацию и настраивает вывод; приложение собирается лениво
func (c *CLI) init() error {
	mode, err := ParseColorMode(c.colorMode)
	if err != nil {
		return err
	}
	c.printer = NewPrinter(c.opts.Out, c.opts.Err, ResolveColors(mode, c.opts.Out), c.quiet)

	cfg, err := c.opts.LoadConfig()
	if err != nil {
		return err
	}
	c.cfg = cfg

	c.logger = c.opts.Logger
	if c.logger == nil {
		c.logger = utils.InitGlobalLogger(utils.LogConfig{
			Level:  c.logLevel,
			Format: "text",
			Output: cfg.Logging.Output,
		})
	}
	return nil
}

// application собирает клиентский стек при первом обращении
func (c *CLI) application() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := c.opts.Build(c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// requireSession - PreRunE защищенных команд
func (c *CLI) requireSession(cmd *cobra.Command, _ []string) error {
	a, err := c.application()
	if err != nil {
		return err
	}
	decision := guard.Check(a.Session, cmd.CommandPath())
	if !decision.Allow {
		c.logger.Debug("guarded command without session",
			utils.String("command", cmd.CommandPath()),
			utils.String("redirect", decision.Redirect),
		)
		return ErrLoginRequired
	}
	return nil
}

func (c *CLI) ensurePrinter() *Printer {
	if c.printer == nil {
		c.printer = NewPrinter(c.opts.Out, c.opts.Err, false, false)
	}
	return c.printer
}

func (c *CLI) close() {
	if c.app == nil {
		return
	}
	if err := c.app.Close(); err != nil && c.logger != nil {
		c.logger.Warn("failed to close client", utils.Err(err))
	}
	c.app = nil
}

// Main - точка входа cmd/tradectl; возвращает код выхода
func Main(ctx context.Context, args []string) int {
	if err := New(Options{}).Execute(ctx, args); err != nil {
		return 1
	}
	return 0
}
