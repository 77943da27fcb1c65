package cmd

import (
	"fmt"

	"github.com/remlink/rlg/internal/output"
	"github.com/remlink/rlg/internal/session"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <func> [args...]",
		Short: "Call a function (or companion-wrapped inline/macro) on the target",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCall,
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	name := args[0]
	rawArgs := args[1:]

	p, err := resolveProfile()
	if err != nil {
		return err
	}
	sess, err := session.Connect(p)
	if err != nil {
		return fmt.Errorf("connecting to %q: %w", p.Name, err)
	}
	defer sess.Close()

	fn, err := sess.Lib.Func(name)
	if err != nil {
		return err
	}

	callArgs := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		n, err := parseScalar(a)
		if err != nil {
			return fmt.Errorf("argument %d (%q): %w", i, a, err)
		}
		callArgs[i] = n
	}

	ret, err := fn.Call(callArgs...)
	if err != nil {
		return err
	}

	if ret == nil {
		if output.IsJSON() {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"name": name})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s() -> void\n", name)
		return nil
	}
	return printValue(cmd, ret)
}
