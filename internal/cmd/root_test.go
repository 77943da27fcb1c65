package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestAllSubcommandsRegistered(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"read", "write", "call", "gen", "inspect", "config", "profile"} {
		if !names[name] {
			t.Errorf("%q subcommand not registered on root command", name)
		}
	}
}

func TestGlobalFlagsRegistered(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"json", "verbose", "quiet", "profile", "config-dir"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s not registered", name)
		}
	}
}

func TestVerboseAndQuietAreMutuallyExclusive(t *testing.T) {
	root := newRootCmd()
	verboseFlag = true
	quietFlag = true
	defer func() { verboseFlag, quietFlag = false, false }()

	if root.PersistentPreRunE == nil {
		t.Fatal("expected PersistentPreRunE to be set")
	}
	if err := root.PersistentPreRunE(root, nil); err == nil {
		t.Fatal("expected an error when --verbose and --quiet are both set")
	}
}

func TestConfigSubcommandHasGetSet(t *testing.T) {
	root := NewRootCmd()
	var configCmd *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "config" {
			configCmd = c
		}
	}
	if configCmd == nil {
		t.Fatal("'config' subcommand not registered")
	}
	names := map[string]bool{}
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["get"] || !names["set"] {
		t.Errorf("expected config get/set subcommands, found %v", names)
	}
}

func TestProfileSubcommandHasListAddRemove(t *testing.T) {
	root := NewRootCmd()
	var profileCmd *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "profile" {
			profileCmd = c
		}
	}
	if profileCmd == nil {
		t.Fatal("'profile' subcommand not registered")
	}
	names := map[string]bool{}
	for _, c := range profileCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "add", "remove"} {
		if !names[name] {
			t.Errorf("'profile %s' subcommand not found", name)
		}
	}
}
