// Package config loads murmur's YAML settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"murmur/hotkey"
	"murmur/sink"
	"murmur/transform"
)

var ErrInvalid = errors.New("config: invalid")

const fileName = "config.yaml"

type Config struct {
	Worker    Worker    `yaml:"worker"`
	Hotkeys   Hotkeys   `yaml:"hotkeys"`
	Dictation Dictation `yaml:"dictation"`
	LLM       LLM       `yaml:"llm"`
	Sink      Sink      `yaml:"sink"`
}

type Worker struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	// Model is passed to the worker as WHISPER_MODEL.
	Model        string        `yaml:"model"`
	MaxRestarts  int           `yaml:"max_restarts"`
	RestartDelay time.Duration `yaml:"restart_delay"`
	StopGrace    time.Duration `yaml:"stop_grace"`
}

// Hotkeys holds accelerators such as "CommandOrControl+Shift+Space". An
// empty entry leaves that trigger unbound.
type Hotkeys struct {
	Hold   string `yaml:"hold"`
	Toggle string `yaml:"toggle"`
	Notes  string `yaml:"notes"`
}

type Dictation struct {
	Continuous     bool          `yaml:"continuous"`
	LowLatency     bool          `yaml:"low_latency"`
	NoiseReduction bool          `yaml:"noise_reduction"`
	Style          string        `yaml:"style"`
	Category       string        `yaml:"category"`
	Language       string        `yaml:"language"`
	FailSafe       time.Duration `yaml:"fail_safe"`
}

type LLM struct {
	Enabled bool `yaml:"enabled"`
	// Backend is "openai" for an OpenAI-compatible HTTP endpoint or
	// "service" for the line-protocol helper process.
	Backend   string        `yaml:"backend"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Command   string        `yaml:"command"`
	Args      []string      `yaml:"args"`
	Timeout   time.Duration `yaml:"timeout"`
}

// APIKey reads the key from the configured environment variable.
func (l LLM) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

type Sink struct {
	Strategies   []string      `yaml:"strategies"`
	RestoreAfter time.Duration `yaml:"restore_after"`
	TypistRunes  int           `yaml:"typist_runes"`
}

func Default() Config {
	return Config{
		Worker: Worker{
			Command:      "python3",
			Args:         []string{"whisper_service.py"},
			Model:        "base.en",
			MaxRestarts:  3,
			RestartDelay: time.Second,
			StopGrace:    2 * time.Second,
		},
		Hotkeys: Hotkeys{
			Hold:   "CommandOrControl+Shift+Space",
			Toggle: "CommandOrControl+Shift+D",
			Notes:  "CommandOrControl+Shift+N",
		},
		Dictation: Dictation{
			Style:    string(transform.Formal),
			Category: string(transform.Personal),
			Language: "en",
			FailSafe: 30 * time.Second,
		},
		LLM: LLM{
			Backend:   "openai",
			BaseURL:   "http://localhost:11434/v1",
			Model:     "llama3.2",
			APIKeyEnv: "OPENAI_API_KEY",
			Command:   "python3",
			Args:      []string{"llm_service.py"},
			Timeout:   transform.DefaultTimeout,
		},
		Sink: Sink{
			Strategies:   []string{"paste", "type_tool", "typist", "clipboard_only"},
			RestoreAfter: 600 * time.Millisecond,
			TypistRunes:  sink.DefaultTypistRunes,
		},
	}
}

// ResolvePath picks the config file: the flag value, then MURMUR_CONFIG,
// then the OS config dir.
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return filepath.Abs(flagPath)
	}
	if p := os.Getenv("MURMUR_CONFIG"); p != "" {
		return filepath.Abs(p)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "murmur", fileName), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
// A .env file next to it is loaded into the environment first; variables
// already set win.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals YAML into cfg, rejecting unknown keys, and validates the
// result.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Worker.Command == "" {
		errs = append(errs, errors.New("worker.command is empty"))
	}
	if c.Worker.MaxRestarts < 0 {
		errs = append(errs, errors.New("worker.max_restarts is negative"))
	}

	bound := 0
	for name, combo := range map[string]string{"hold": c.Hotkeys.Hold, "toggle": c.Hotkeys.Toggle, "notes": c.Hotkeys.Notes} {
		if combo == "" {
			continue
		}
		bound++
		if _, err := hotkey.ParseCombo(combo); err != nil {
			errs = append(errs, fmt.Errorf("hotkeys.%s: %v", name, err))
		}
	}
	if bound == 0 {
		errs = append(errs, errors.New("no hotkeys bound"))
	}

	if c.Dictation.FailSafe <= 0 {
		errs = append(errs, errors.New("dictation.fail_safe must be positive"))
	}
	if s := c.Dictation.Style; s != "" && string(transform.ParseStyle(s)) != s {
		errs = append(errs, fmt.Errorf("dictation.style %q is unknown", s))
	}
	if s := c.Dictation.Category; s != "" && string(transform.ParseCategory(s)) != s {
		errs = append(errs, fmt.Errorf("dictation.category %q is unknown", s))
	}

	switch c.LLM.Backend {
	case "openai":
	case "service":
		if c.LLM.Command == "" {
			errs = append(errs, errors.New("llm.command is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.backend %q is unknown", c.LLM.Backend))
	}

	if len(c.Sink.Strategies) == 0 {
		errs = append(errs, errors.New("sink.strategies is empty"))
	}
	if _, err := sink.Build(c.Sink.Strategies, 0, 0); err != nil {
		errs = append(errs, fmt.Errorf("sink.strategies: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
