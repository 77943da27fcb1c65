package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/remlink/rlg/internal/companion"
	"github.com/remlink/rlg/internal/companion/minic"
	"github.com/remlink/rlg/internal/config"
	"github.com/remlink/rlg/internal/output"
	"github.com/spf13/cobra"
)

var (
	genHeadersFlag    []string
	genInlineSrcFlag  string
	genIncludeDirFlag []string
	genDefinesFlag    []string
	genPrefixFlag     string
	genOutFlag        string
)

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the companion source: shims for inline functions and macros",
		Long: `gen reads a set of headers (for #define macros) and an optional source
file (for "inline" function definitions) and emits one compilation unit
exposing a non-inline, addressable symbol for each — the shim a function
or object file needs so rlg can resolve and call/read it like any other
DWARF-visible symbol.`,
		Args: cobra.NoArgs,
		RunE: runGen,
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&genHeadersFlag, "header", nil, "Header to scan for #define macros (repeatable)")
	flags.StringVar(&genInlineSrcFlag, "inline-src", "", "Source file to scan for inline function definitions")
	flags.StringArrayVarP(&genIncludeDirFlag, "include-dir", "I", nil, "Include directory searched when a --header isn't found directly (repeatable)")
	flags.StringArrayVarP(&genDefinesFlag, "define", "D", nil, "Extra NAME=VALUE macro seed, as if from the command line (repeatable)")
	flags.StringVar(&genPrefixFlag, "prefix", "", "Companion symbol prefix (default: _rlg_, or config's companion_prefix)")
	flags.StringVarP(&genOutFlag, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func runGen(cmd *cobra.Command, args []string) error {
	defines := map[string]string{}
	for _, d := range genDefinesFlag {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			return fmt.Errorf("--define %q: expected NAME=VALUE", d)
		}
		defines[name] = val
	}

	var inlineSrc string
	if genInlineSrcFlag != "" {
		data, err := os.ReadFile(genInlineSrcFlag)
		if err != nil {
			return fmt.Errorf("reading --inline-src: %w", err)
		}
		inlineSrc = string(data)
	}

	prefix := genPrefixFlag
	if prefix == "" {
		if cfg, err := config.Load(); err == nil {
			prefix = cfg.CompanionPrefix
		}
	}
	gen := companion.New(&minic.Preprocessor{}, &minic.Parser{}, prefix)
	out, err := gen.Generate(genHeadersFlag, inlineSrc, defines, genIncludeDirFlag)
	if err != nil {
		return err
	}

	if genOutFlag == "" {
		if output.IsJSON() {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]string{"source": out})
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}
	if err := os.WriteFile(genOutFlag, []byte(out), 0o644); err != nil {
		return err
	}
	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]string{"path": genOutFlag})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", genOutFlag)
	return nil
}
