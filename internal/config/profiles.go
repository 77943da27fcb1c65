package config

import (
	"fmt"
	"os"

	"github.com/asaskevich/govalidator"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// TargetProfile names one target endpoint plus the debug artifacts needed to
// talk to it. Kind selects which Communicator variant and which fields are
// required: "tcp" needs Address, "serial" needs Device (and optionally
// Baud), "vsock" needs Device (the hypervisor's vsock UDS path) and
// VsockPort (the guest port its command loop listens on).
type TargetProfile struct {
	Name          string `mapstructure:"name"`
	Kind          string `mapstructure:"kind"` // "tcp" | "serial" | "vsock"
	Address       string `mapstructure:"address,omitempty"`
	Device        string `mapstructure:"device,omitempty"`
	Baud          int    `mapstructure:"baud,omitempty"`
	VsockPort     uint32 `mapstructure:"vsock_port,omitempty" yaml:"vsock_port,omitempty"`
	ELFPath       string `mapstructure:"elf_path" yaml:"elf_path"`
	ScratchSymbol string `mapstructure:"scratch_symbol,omitempty" yaml:"scratch_symbol,omitempty"`
}

// Validate checks that a profile's fields are well-formed for its Kind.
// Catches malformed addresses/devices before a Communicator dial attempt
// produces a more confusing low-level error.
func (p TargetProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile missing name")
	}
	if p.ELFPath == "" {
		return fmt.Errorf("profile %q: elf_path is required", p.Name)
	}
	switch p.Kind {
	case "tcp":
		if p.Address == "" {
			return fmt.Errorf("profile %q: address is required for kind=tcp", p.Name)
		}
		if !govalidator.IsDialString(p.Address) {
			return fmt.Errorf("profile %q: address %q is not a valid host:port", p.Name, p.Address)
		}
	case "serial":
		if p.Device == "" {
			return fmt.Errorf("profile %q: device is required for kind=serial", p.Name)
		}
		if !govalidator.IsUnixFilePath(p.Device) {
			return fmt.Errorf("profile %q: device %q is not a valid path", p.Name, p.Device)
		}
	case "vsock":
		if p.Device == "" {
			return fmt.Errorf("profile %q: device (the hypervisor's vsock UDS path) is required for kind=vsock", p.Name)
		}
		if !govalidator.IsUnixFilePath(p.Device) {
			return fmt.Errorf("profile %q: device %q is not a valid path", p.Name, p.Device)
		}
		if p.VsockPort == 0 {
			return fmt.Errorf("profile %q: vsock_port is required for kind=vsock", p.Name)
		}
	default:
		return fmt.Errorf("profile %q: unknown kind %q (want tcp, serial or vsock)", p.Name, p.Kind)
	}
	return nil
}

// LoadProfiles reads profiles.yaml, decodes it generically (so fields that
// only apply to one Kind don't need a shared struct tag set), then
// re-decodes each entry into a TargetProfile with mapstructure.
func LoadProfiles() (map[string]TargetProfile, error) {
	data, err := os.ReadFile(ProfilesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]TargetProfile{}, nil
		}
		return nil, fmt.Errorf("reading profiles.yaml: %w", err)
	}

	var raw struct {
		Profiles []map[string]any `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing profiles.yaml: %w", err)
	}

	out := make(map[string]TargetProfile, len(raw.Profiles))
	for i, m := range raw.Profiles {
		var p TargetProfile
		if err := mapstructure.Decode(m, &p); err != nil {
			return nil, fmt.Errorf("profiles.yaml entry %d: %w", i, err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[p.Name] = p
	}
	return out, nil
}

// SaveProfiles writes the profile map back to profiles.yaml, sorted by name
// for a stable diff.
func SaveProfiles(profiles map[string]TargetProfile) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sortStrings(names)

	var raw struct {
		Profiles []TargetProfile `yaml:"profiles"`
	}
	for _, name := range names {
		raw.Profiles = append(raw.Profiles, profiles[name])
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshaling profiles.yaml: %w", err)
	}
	return os.WriteFile(ProfilesPath(), data, 0o644)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
