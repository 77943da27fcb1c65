package config

import (
	"fmt"
	"os"
)

// ResolveProfile determines which target profile to use.
// Precedence:
//  1. flagProfile (from --profile flag)
//  2. envProfile (from RLG_PROFILE env var)
//  3. .rlgrc walk-up from cwd
//  4. config.toml default_profile
func ResolveProfile(flagProfile, envProfile string) (TargetProfile, error) {
	name, err := resolveProfileName(flagProfile, envProfile)
	if err != nil {
		return TargetProfile{}, err
	}

	profiles, err := LoadProfiles()
	if err != nil {
		return TargetProfile{}, err
	}
	p, ok := profiles[name]
	if !ok {
		return TargetProfile{}, fmt.Errorf("no profile named %q in %s", name, ProfilesPath())
	}
	return p, nil
}

func resolveProfileName(flagProfile, envProfile string) (string, error) {
	// 1. Explicit flag
	if flagProfile != "" {
		return flagProfile, nil
	}

	// 2. Environment variable
	if envProfile != "" {
		return envProfile, nil
	}

	// 3. .rlgrc walk-up
	cwd, err := os.Getwd()
	if err == nil {
		if rcPath, err := FindRLGRC(cwd); err == nil && rcPath != "" {
			if name, err := ReadRLGRC(rcPath); err == nil {
				return name, nil
			}
		}
	}

	// 4. config.toml default_profile
	cfg, err := Load()
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile, nil
	}

	return "", fmt.Errorf("no target profile configured; use --profile, set RLG_PROFILE, create .rlgrc, or set default_profile in config.toml")
}
