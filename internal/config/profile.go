package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is one assistant persona. Profiles live as standalone yaml
// files in the profiles dir and can be switched at runtime per session.
type Profile struct {
	Name         string `yaml:"name" json:"name"`
	DisplayName  string `yaml:"display_name" json:"display_name"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
	Voice        string `yaml:"voice" json:"voice"`
	Greeting     string `yaml:"greeting" json:"greeting"`
	Avatar       string `yaml:"avatar" json:"avatar"`
}

// ProfileInfo identifies a profile file for listing.
type ProfileInfo struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
}

// ReadProfile parses one profile file. A missing name falls back to the
// file name.
func ReadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, err
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Name
	}
	return profile, nil
}

// ScanProfiles lists the yaml profiles under profilesDir. Unreadable
// files still appear, named by their file name.
func ScanProfiles(profilesDir string) []ProfileInfo {
	profiles := []ProfileInfo{}
	_ = filepath.WalkDir(profilesDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d == nil || d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(d.Name()); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if profile, err := ReadProfile(path); err == nil && profile.Name != "" {
			name = profile.Name
		}
		profiles = append(profiles, ProfileInfo{Filename: d.Name(), Name: name})
		return nil
	})
	return profiles
}

// FindProfile loads the named profile from profilesDir, matching either
// the declared name or the file name.
func FindProfile(profilesDir string, name string) (Profile, error) {
	direct := filepath.Join(profilesDir, name+".yaml")
	if profile, err := ReadProfile(direct); err == nil {
		return profile, nil
	}

	var found Profile
	foundErr := os.ErrNotExist
	_ = filepath.WalkDir(profilesDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d == nil || d.IsDir() || foundErr == nil {
			return nil
		}
		if ext := filepath.Ext(d.Name()); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		profile, err := ReadProfile(path)
		if err != nil {
			return nil
		}
		if profile.Name == name {
			found = profile
			foundErr = nil
		}
		return nil
	})
	return found, foundErr
}
