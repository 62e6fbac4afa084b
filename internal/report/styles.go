package report

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ANSI palette.
const (
	ColorGreen  = "2"
	ColorRed    = "9"
	ColorYellow = "3"
	ColorBlue   = "4"
	ColorGray   = "245"
)

// Styles holds the report styles.
type Styles struct {
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Unknown lipgloss.Style
	Header  lipgloss.Style
	Note    lipgloss.Style
	Detail  lipgloss.Style
}

// DefaultStyles returns coloured styles rendered for w. Colour is forced
// on regardless of whether w is a terminal.
func DefaultStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.ANSI)
	return Styles{
		Pass:    r.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Fail:    r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorRed)),
		Unknown: r.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Header:  r.NewStyle().Bold(true),
		Note:    r.NewStyle().Foreground(lipgloss.Color(ColorBlue)),
		Detail:  r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Pass: plain, Fail: plain, Unknown: plain, Header: plain, Note: plain, Detail: plain}
}

// GetStyles returns the styles for the colour mode: "always", "never" or
// "auto", which colours terminals unless NO_COLOR or
// ANSI_COLORS_DISABLED is set.
func GetStyles(mode string, w io.Writer) Styles {
	if UseColor(mode, w) {
		return DefaultStyles(w)
	}
	return NoColorStyles()
}

// UseColor resolves a colour mode for w.
func UseColor(mode string, w io.Writer) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if _, ok := os.LookupEnv("ANSI_COLORS_DISABLED"); ok {
		return false
	}
	return IsTTY(w)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}
