package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/desertthunder/crowdq/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiEventBuffer = 16

// TUI runs the rotation engine with the interactive terminal UI in front of it.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/crowdq-tui.log"
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if err := shared.ConfigureLogger(fileLogger, r.config.Log); err != nil {
		fileLogger.Warn("ignoring log level", "error", err)
	}
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e, err := r.startEngine(ctx, cmd.Bool("simulate"))
	if err != nil {
		return err
	}
	defer e.stop(r)
	defer cancel()

	sub, unsubscribe := e.bus.Subscribe(tuiEventBuffer)
	defer unsubscribe()

	model := ui.NewModel(ctx, e.dispatcher, sub, cmd.String("voter"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
