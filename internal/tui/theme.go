package tui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette. ANSI 256 codes for broad terminal support.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color

	BookAction lipgloss.Color
	Booked     lipgloss.Color

	InfoColor    lipgloss.Color
	WarningColor lipgloss.Color
	ErrorColor   lipgloss.Color
}

// DefaultTheme is tuned for dark terminals.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),
	HeaderForeground:   lipgloss.Color("75"),
	BorderColor:        lipgloss.Color("240"),
	BookAction:         lipgloss.Color("114"),
	Booked:             lipgloss.Color("243"),
	InfoColor:          lipgloss.Color("114"),
	WarningColor:       lipgloss.Color("221"),
	ErrorColor:         lipgloss.Color("203"),
}
