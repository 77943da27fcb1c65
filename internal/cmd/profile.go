package cmd

import (
	"fmt"
	"sort"

	"github.com/remlink/rlg/internal/config"
	"github.com/remlink/rlg/internal/output"
	"github.com/spf13/cobra"
)

var (
	profileKindFlag          string
	profileAddressFlag       string
	profileDeviceFlag        string
	profileBaudFlag          int
	profileVsockPortFlag     uint32
	profileELFFlag           string
	profileScratchSymbolFlag string
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named target profiles (profiles.yaml)",
	}
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileAddCmd())
	cmd.AddCommand(newProfileRemoveCmd())
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured target profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.LoadProfiles()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(profiles))
			for name := range profiles {
				names = append(names, name)
			}
			sort.Strings(names)

			if output.IsJSON() {
				return output.PrintJSON(cmd.OutOrStdout(), profiles)
			}
			for _, name := range names {
				p := profiles[name]
				target := p.Address
				if p.Kind == "serial" {
					target = p.Device
				} else if p.Kind == "vsock" {
					target = fmt.Sprintf("%s:%d", p.Device, p.VsockPort)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-8s %-20s %s\n", name, p.Kind, target, p.ELFPath)
			}
			return nil
		},
	}
}

func newProfileAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a target profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.LoadProfiles()
			if err != nil {
				return err
			}
			p := config.TargetProfile{
				Name:          args[0],
				Kind:          profileKindFlag,
				Address:       profileAddressFlag,
				Device:        profileDeviceFlag,
				Baud:          profileBaudFlag,
				VsockPort:     profileVsockPortFlag,
				ELFPath:       profileELFFlag,
				ScratchSymbol: profileScratchSymbolFlag,
			}
			if err := p.Validate(); err != nil {
				return err
			}
			profiles[p.Name] = p
			if err := config.SaveProfiles(profiles); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.PrintJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %q\n", p.Name)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&profileKindFlag, "kind", "tcp", "Link kind: tcp, serial, or vsock")
	flags.StringVar(&profileAddressFlag, "address", "", "host:port for kind=tcp")
	flags.StringVar(&profileDeviceFlag, "device", "", "Serial device path for kind=serial, or the hypervisor's vsock UDS path for kind=vsock")
	flags.IntVar(&profileBaudFlag, "baud", 115200, "Baud rate for kind=serial")
	flags.Uint32Var(&profileVsockPortFlag, "vsock-port", 0, "Guest vsock port for kind=vsock")
	flags.StringVar(&profileELFFlag, "elf", "", "Path to the target's ELF binary (required)")
	flags.StringVar(&profileScratchSymbolFlag, "scratch-symbol", "", "Symbol naming the target's scratch arena")
	cmd.MarkFlagRequired("elf")
	return cmd
}

func newProfileRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a target profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.LoadProfiles()
			if err != nil {
				return err
			}
			if _, ok := profiles[args[0]]; !ok {
				return fmt.Errorf("no profile named %q", args[0])
			}
			delete(profiles, args[0])
			return config.SaveProfiles(profiles)
		},
	}
}
