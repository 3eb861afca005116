package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// ColorMode - режим цветного вывода
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode разбирает значение флага --color
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors решает, включать ли цвет. В auto режиме учитываются NO_COLOR,
// TERM=dumb и то, является ли out терминалом.
func ResolveColors(mode ColorMode, out io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && isTerminal(f)
}

// Printer - форматированный вывод в терминал
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	quiet     bool
}

// NewPrinter создает printer поверх out/err
func NewPrinter(out, err io.Writer, useColors, quiet bool) *Printer {
	return &Printer{out: out, err: err, useColors: useColors, quiet: quiet}
}

// Out - writer для таблиц и JSON
func (p *Printer) Out() io.Writer {
	return p.out
}

// IsQuiet - подавлен ли информационный вывод
func (p *Printer) IsQuiet() bool {
	return p.quiet
}

// Info печатает информационное сообщение
func (p *Printer) Info(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	if p.useColors {
		color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
	} else {
		fmt.Fprintf(p.out, format+"\n", args...)
	}
}

// Success печатает сообщение об успехе
func (p *Printer) Success(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
	} else {
		fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
	}
}

// Warning печатает предупреждение в stderr
func (p *Printer) Warning(format string, args ...interface{}) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
	} else {
		fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
	}
}

// Error печатает ошибку в stderr; quiet на нее не действует
func (p *Printer) Error(format string, args ...interface{}) {
	if p.useColors {
		color.New(color.FgRed).Fprintf(p.err, "✗ "+format+"\n", args...)
	} else {
		fmt.Fprintf(p.err, "[ERROR] "+format+"\n", args...)
	}
}

// Print печатает строку без оформления
func (p *Printer) Print(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header печатает заголовок секции
func (p *Printer) Header(title string) {
	if p.quiet {
		return
	}
	if p.useColors {
		color.New(color.FgWhite, color.Bold).Fprintf(p.out, "\n%s\n", title)
		color.New(color.FgWhite).Fprintf(p.out, "%s\n", strings.Repeat("─", len(title)))
	} else {
		fmt.Fprintf(p.out, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
	}
}

// StatusBadge - цветная метка статуса
func (p *Printer) StatusBadge(status string) string {
	if !p.useColors {
		return fmt.Sprintf("[%s]", status)
	}
	switch status {
	case "ok", "valid", "saved", "logged in":
		return color.GreenString("●")
	case "error", "invalid", "save failed", "unreachable":
		return color.RedString("●")
	case "testing", "saving", "loading":
		return color.YellowString("●")
	default:
		return color.WhiteString("○")
	}
}

// Dim - приглушенный текст
func (p *Printer) Dim(text string) string {
	if p.useColors {
		return color.New(color.Faint).Sprint(text)
	}
	return text
}
