package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/remlink/rlg/internal/inspect"
	"github.com/remlink/rlg/internal/session"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <name>",
		Short: "Open a live TUI view of a variable on the target",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	p, err := resolveProfile()
	if err != nil {
		return err
	}
	sess, err := session.Connect(p)
	if err != nil {
		return fmt.Errorf("connecting to %q: %w", p.Name, err)
	}
	defer sess.Close()

	m, err := inspect.New(sess.Lib, args[0])
	if err != nil {
		return err
	}

	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err = prog.Run()
	return err
}
