package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultProfile is used when no profile is given.
	DefaultProfile = "default"

	// ProfilesDirName holds one directory per profile.
	ProfilesDirName = "profiles"

	// StateFileName is the SQLite file inside a profile directory.
	StateFileName = "state.db"

	// HomeEnv overrides the base directory (~/.tab-navigator).
	HomeEnv = "TABNAV_HOME"

	// ProfileEnv selects the profile when -p is not given.
	ProfileEnv = "TABNAV_PROFILE"
)

// Dir returns the base directory, honouring TABNAV_HOME.
func Dir() (string, error) {
	if d := os.Getenv(HomeEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home directory: %w", err)
	}
	return filepath.Join(home, ".tab-navigator"), nil
}

// Path returns the location of config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// EffectiveProfile resolves the profile to use: the explicit name, then
// TABNAV_PROFILE, then DefaultProfile.
func EffectiveProfile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(ProfileEnv); p != "" {
		return p
	}
	return DefaultProfile
}

// ProfileDir returns the directory of profile. Names that would escape the
// profiles directory are rejected.
func ProfileDir(profile string) (string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if profile != filepath.Base(profile) || profile == "." || profile == ".." || strings.ContainsAny(profile, `/\`) {
		return "", fmt.Errorf("config: invalid profile name %q", profile)
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProfilesDirName, profile), nil
}

// StatePath returns the state database for profile.
func StatePath(profile string) (string, error) {
	dir, err := ProfileDir(profile)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateFileName), nil
}

// ListProfiles returns the names of existing profile directories, sorted.
func ListProfiles() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, ProfilesDirName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read profiles: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
