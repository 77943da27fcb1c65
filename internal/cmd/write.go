package cmd

import (
	"fmt"

	"github.com/remlink/rlg/internal/output"
	"github.com/remlink/rlg/internal/proxy"
	"github.com/remlink/rlg/internal/session"
	"github.com/spf13/cobra"
)

var writeMemberFlag string
var writeIndexFlag int64
var writeIndexSet bool

func newWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <name> <value>",
		Short: "Write a scalar value into the target",
		Args:  cobra.ExactArgs(2),
		RunE:  runWrite,
	}
	flags := cmd.Flags()
	flags.StringVar(&writeMemberFlag, "member", "", "Write a struct/union member instead of the variable itself")
	flags.Int64Var(&writeIndexFlag, "index", 0, "Write an array element instead of the variable itself")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		writeIndexSet = cmd.Flags().Changed("index")
		return nil
	}
	return cmd
}

func runWrite(cmd *cobra.Command, args []string) error {
	name, rawVal := args[0], args[1]
	n, err := parseScalar(rawVal)
	if err != nil {
		return fmt.Errorf("parsing value %q: %w", rawVal, err)
	}

	p, err := resolveProfile()
	if err != nil {
		return err
	}
	sess, err := session.Connect(p)
	if err != nil {
		return fmt.Errorf("connecting to %q: %w", p.Name, err)
	}
	defer sess.Close()

	switch {
	case writeMemberFlag != "":
		v, err := requireValue(sess.Lib, name)
		if err != nil {
			return err
		}
		err = v.SetMember(writeMemberFlag, n)
		if err != nil {
			return err
		}
	case writeIndexSet:
		v, err := requireValue(sess.Lib, name)
		if err != nil {
			return err
		}
		if err := v.SetIndex(writeIndexFlag, n); err != nil {
			return err
		}
	default:
		v, err := requireValue(sess.Lib, name)
		if err != nil {
			return err
		}
		if err := v.Set(n); err != nil {
			return err
		}
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"name": name, "value": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s = %d\n", name, n)
	return nil
}

// requireValue fetches name as a *proxy.Value even when CompatibilityMode
// would otherwise auto-unwrap it to a plain scalar, since write needs the
// address to target.
func requireValue(lib *proxy.Lib, name string) (*proxy.Value, error) {
	prev := proxy.CompatibilityMode
	proxy.CompatibilityMode = false
	defer func() { proxy.CompatibilityMode = prev }()

	val, err := lib.Get(name)
	if err != nil {
		return nil, err
	}
	v, ok := val.(*proxy.Value)
	if !ok {
		return nil, fmt.Errorf("%s did not resolve to an addressable value", name)
	}
	return v, nil
}
