package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/passthepresent/internal/i18n"
)

// Run shows the game in the alternate screen until the player quits or ctx
// is cancelled.
func Run(ctx context.Context, game Game, tr *i18n.Translator, logger *log.Logger) error {
	m := New(game, tr, logger)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	logger.Info("terminal ui closed")
	return nil
}
