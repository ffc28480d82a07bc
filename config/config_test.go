package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/transform"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.Command != Default().Worker.Command {
		t.Errorf("worker command = %q", cfg.Worker.Command)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
worker:
  command: ./worker
  model: small.en
dictation:
  continuous: true
  style: casual
  fail_safe: 45s
sink:
  strategies: [typist, clipboard_only]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.Command != "./worker" || cfg.Worker.Model != "small.en" {
		t.Errorf("worker = %+v", cfg.Worker)
	}
	if len(cfg.Worker.Args) != 1 {
		t.Errorf("unset args should keep the default, got %v", cfg.Worker.Args)
	}
	if !cfg.Dictation.Continuous || cfg.Dictation.FailSafe != 45*time.Second {
		t.Errorf("dictation = %+v", cfg.Dictation)
	}
	if strings.Join(cfg.Sink.Strategies, ",") != "typist,clipboard_only" {
		t.Errorf("strategies = %v", cfg.Sink.Strategies)
	}
	if cfg.Hotkeys.Hold == "" {
		t.Error("hotkeys lost their defaults")
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "worker:\n  comand: x\n", "comand"},
		{"bad combo", "hotkeys:\n  hold: Ctrl+Hyper\n", "hotkeys.hold"},
		{"no hotkeys", "hotkeys:\n  hold: \"\"\n  toggle: \"\"\n  notes: \"\"\n", "no hotkeys"},
		{"bad style", "dictation:\n  style: shouty\n", "dictation.style"},
		{"bad backend", "llm:\n  backend: carrier_pigeon\n", "llm.backend"},
		{"bad strategy", "sink:\n  strategies: [telepathy]\n", "sink.strategies"},
		{"zero fail safe", "dictation:\n  fail_safe: 0s\n", "fail_safe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Decode([]byte(tt.yaml), &cfg)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "MURMUR_TEST_KEY=from-dotenv\n")
	writeFile(t, filepath.Join(dir, "config.yaml"), "llm:\n  api_key_env: MURMUR_TEST_KEY\n")
	t.Setenv("MURMUR_TEST_KEY", "")
	os.Unsetenv("MURMUR_TEST_KEY")

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.LLM.APIKey(); got != "from-dotenv" {
		t.Errorf("APIKey() = %q", got)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("MURMUR_CONFIG", "/etc/murmur.yaml")
	if p, _ := ResolvePath("/tmp/flag.yaml"); p != "/tmp/flag.yaml" {
		t.Errorf("flag path = %q", p)
	}
	if p, _ := ResolvePath(""); p != "/etc/murmur.yaml" {
		t.Errorf("env path = %q", p)
	}
	t.Setenv("MURMUR_CONFIG", "")
	p, err := ResolvePath("")
	if err == nil && !strings.HasSuffix(p, filepath.Join("murmur", "config.yaml")) {
		t.Errorf("default path = %q", p)
	}
}

func TestStoreSettings(t *testing.T) {
	cfg := Default()
	cfg.Dictation.Style = "casual"
	cfg.Dictation.Category = "work"
	cfg.LLM.Enabled = true
	s := NewStoreFrom("", cfg)

	got := s.Settings()
	if got.Style != transform.Casual || got.Category != transform.Work || !got.LLMProcessing {
		t.Errorf("settings = %+v", got)
	}
	if got.HoldKeys != "Ctrl+Shift+Space" {
		t.Errorf("hold keys = %q", got.HoldKeys)
	}
}

func TestStoreReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "dictation:\n  continuous: true\n")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, "dictation:\n  continuous: [\n")
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if !s.Config().Dictation.Continuous {
		t.Error("previous snapshot was replaced")
	}
}

func TestStoreWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "dictation:\n  style: formal\n")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	changed := make(chan Config, 4)
	s.OnChange(func(c Config) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "dictation:\n  style: excited\n")
	select {
	case c := <-changed:
		if c.Dictation.Style != "excited" {
			t.Errorf("reloaded style = %q", c.Dictation.Style)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
	if s.Settings().Style != transform.Excited {
		t.Errorf("store style = %q", s.Settings().Style)
	}
}
