// Package ui provides terminal styling helpers for the CLI.
//
// Styling is disabled automatically when stdout is not a terminal, so
// output piped into hooks or scripts stays plain.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	dimStyle    = lipgloss.NewStyle().Faint(true)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

var isTTY = term.IsTerminal(int(os.Stdout.Fd()))

func render(style lipgloss.Style, s string) string {
	if !isTTY {
		return s
	}
	return style.Render(s)
}

// RenderAccent highlights informational markers.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderPass highlights success markers.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn highlights warnings.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail highlights errors.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderDim de-emphasizes secondary detail.
func RenderDim(s string) string { return render(dimStyle, s) }

// RenderBold emphasizes headings.
func RenderBold(s string) string { return render(boldStyle, s) }
