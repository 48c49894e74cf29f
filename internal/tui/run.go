package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/and161185/retreat-client/internal/app"
)

// Run starts the browser full-screen and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, a *app.App, sig *Signal) error {
	program := tea.NewProgram(New(a, sig),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
