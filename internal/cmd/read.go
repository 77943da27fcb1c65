package cmd

import (
	"fmt"
	"strconv"

	"github.com/remlink/rlg/internal/output"
	"github.com/remlink/rlg/internal/proxy"
	"github.com/remlink/rlg/internal/session"
	"github.com/spf13/cobra"
)

var readMemberFlag string
var readIndexFlag int64
var readIndexSet bool

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <name>",
		Short: "Read a variable from the target",
		Args:  cobra.ExactArgs(1),
		RunE:  runRead,
	}
	flags := cmd.Flags()
	flags.StringVar(&readMemberFlag, "member", "", "Read a struct/union member instead of the variable itself")
	flags.Int64Var(&readIndexFlag, "index", 0, "Read an array element instead of the variable itself")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		readIndexSet = cmd.Flags().Changed("index")
		return nil
	}
	return cmd
}

func runRead(cmd *cobra.Command, args []string) error {
	p, err := resolveProfile()
	if err != nil {
		return err
	}
	sess, err := session.Connect(p)
	if err != nil {
		return fmt.Errorf("connecting to %q: %w", p.Name, err)
	}
	defer sess.Close()

	val, err := sess.Lib.Get(args[0])
	if err != nil {
		return err
	}

	if readMemberFlag != "" {
		v, ok := val.(*proxy.Value)
		if !ok {
			return fmt.Errorf("%s is a scalar, cannot read member %q", args[0], readMemberFlag)
		}
		val, err = v.Member(readMemberFlag)
		if err != nil {
			return err
		}
	} else if readIndexSet {
		v, ok := val.(*proxy.Value)
		if !ok {
			return fmt.Errorf("%s is a scalar, cannot index", args[0])
		}
		val, err = v.Index(readIndexFlag)
		if err != nil {
			return err
		}
	}

	return printValue(cmd, val)
}

func printValue(cmd *cobra.Command, val any) error {
	switch v := val.(type) {
	case *proxy.Value:
		if output.IsJSON() {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
				"type":    v.Type.TypeName,
				"address": v.Address,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "<%s at 0x%x>\n", v.Type.TypeName, v.Address)
		return nil
	default:
		if output.IsJSON() {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"value": v})
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}
}

// parseScalar converts a CLI argument to an int64, accepting 0x/0b/0o
// prefixes the same way target firmware headers typically spell constants.
func parseScalar(s string) (int64, error) {
	return strconv.ParseInt(s, 0, 64)
}
