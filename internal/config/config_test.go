package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	body := "" +
		"port: 9200\n" +
		"backend:\n" +
		"  url: wss://backend.example/ws\n" +
		"  client_id: client-1\n" +
		"log:\n" +
		"  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.HTTPAddr != ":9200" {
		t.Fatalf("HTTPAddr=%q, want :9200", cfg.HTTPAddr)
	}
	if cfg.Backend.URL != "wss://backend.example/ws" {
		t.Fatalf("Backend.URL=%q", cfg.Backend.URL)
	}
	if cfg.Backend.ClientID != "client-1" {
		t.Fatalf("Backend.ClientID=%q", cfg.Backend.ClientID)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level=%q, want debug", cfg.Log.Level)
	}
	// Untouched keys keep their embedded defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("Audio.SampleRate=%d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Backend.ListenMode != "auto" {
		t.Fatalf("Backend.ListenMode=%q, want auto", cfg.Backend.ListenMode)
	}
}

func TestLoadFileDerivesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte("port: 8100\n"), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.RootDir != dir {
		t.Fatalf("RootDir=%q, want %q", cfg.RootDir, dir)
	}
	if want := filepath.Join(dir, "data", "conversations"); cfg.ConversationsDir != want {
		t.Fatalf("ConversationsDir=%q, want %q", cfg.ConversationsDir, want)
	}
	if want := filepath.Join(dir, "profiles"); cfg.ProfilesDir != want {
		t.Fatalf("ProfilesDir=%q, want %q", cfg.ProfilesDir, want)
	}
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte("port: 8100\n"), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	t.Setenv("LUMI_BACKEND_URL", "wss://env.example/ws")
	t.Setenv("LUMI_HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Backend.URL != "wss://env.example/ws" {
		t.Fatalf("Backend.URL=%q, want env override", cfg.Backend.URL)
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q, want env override", cfg.HTTPAddr)
	}
}

func TestBackendDialTimeout(t *testing.T) {
	if got := (BackendConfig{}).DialTimeout().Seconds(); got != 10 {
		t.Fatalf("default dial timeout=%vs, want 10s", got)
	}
	if got := (BackendConfig{DialTimeoutSeconds: 3}).DialTimeout().Seconds(); got != 3 {
		t.Fatalf("dial timeout=%vs, want 3s", got)
	}
}

func TestProfileScanAndFind(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("default.yaml", "name: default\ndisplay_name: Lumi\ngreeting: Hello!\n")
	write("pirate.yaml", "name: pirate\nsystem_prompt: Speak like a pirate.\n")
	write("notes.txt", "not a profile")

	profiles := ScanProfiles(dir)
	if len(profiles) != 2 {
		t.Fatalf("profiles=%d, want 2: %+v", len(profiles), profiles)
	}

	profile, err := FindProfile(dir, "pirate")
	if err != nil {
		t.Fatalf("FindProfile failed: %v", err)
	}
	if profile.SystemPrompt != "Speak like a pirate." {
		t.Fatalf("profile=%+v", profile)
	}
	if profile.DisplayName != "pirate" {
		t.Fatalf("DisplayName=%q, want fallback to name", profile.DisplayName)
	}

	if _, err := FindProfile(dir, "missing"); err == nil {
		t.Fatal("FindProfile(missing) error=nil, want non-nil")
	}
}
