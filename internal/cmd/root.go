package cmd

import (
	"fmt"
	"os"

	"github.com/remlink/rlg/internal/config"
	"github.com/remlink/rlg/internal/output"
	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var (
	jsonFlag    bool
	verboseFlag bool
	quietFlag   bool
	profileFlag string
	configDir   string
)

// NewRootCmd assembles the full rlg command tree.
func NewRootCmd() *cobra.Command {
	cmd := newRootCmd()
	cmd.AddCommand(newReadCmd())
	cmd.AddCommand(newWriteCmd())
	cmd.AddCommand(newCallCmd())
	cmd.AddCommand(newGenCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newProfileCmd())
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "rlg",
		Short:   "Remote link to a running C target",
		Long:    "rlg reads, writes and calls into a running C target over a byte link, guided by its own DWARF debug info.",
		Version: fmt.Sprintf("rlg %s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag && quietFlag {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			output.SetFlags(jsonFlag, quietFlag, verboseFlag)
			config.SetConfigDir(configDir)
			return nil
		},
	}

	pflags := root.PersistentFlags()
	pflags.BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Extra detail to stderr")
	pflags.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	pflags.StringVarP(&profileFlag, "profile", "p", "", "Target profile name (default: resolved via .rlgrc / env / config)")
	pflags.StringVar(&configDir, "config-dir", "", "Override config directory (default: ~/.rlg)")

	if v := os.Getenv("RLG_HOME"); v != "" && configDir == "" {
		configDir = v
	}

	return root
}

// resolveProfile applies the --profile flag, falling back to the
// RLG_PROFILE env var and then .rlgrc/config.toml precedence.
func resolveProfile() (config.TargetProfile, error) {
	return config.ResolveProfile(profileFlag, os.Getenv("RLG_PROFILE"))
}

// Execute runs the command tree; main's only job is to call this.
func Execute() error {
	return NewRootCmd().Execute()
}
