// Package doctor runs non-interactive diagnostics against the local setup.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"murmur/clipboard"
	"murmur/config"
	"murmur/hotkey"
	"murmur/transform"
	"murmur/worker"
)

const checkTimeout = 5 * time.Second

// ErrSkipped marks a check that does not apply to the current config.
var ErrSkipped = errors.New("skipped")

type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Checks returns the diagnostics for cfg in the order they run.
func Checks(cfg config.Config) []Check {
	return []Check{
		{"Speech worker", func(context.Context) (string, error) { return checkWorker(cfg.Worker) }},
		{"Hotkeys", func(context.Context) (string, error) { return checkHotkeys(cfg.Hotkeys) }},
		{"Clipboard round trip", checkClipboard},
		{"Keystroke output", func(context.Context) (string, error) { return checkKeys() }},
		{"Secondary transform", func(ctx context.Context) (string, error) { return checkLLM(ctx, cfg.LLM) }},
	}
}

// Run executes checks, printing a line per result, and returns an exit code
// (0 all pass, 1 any fail). Skipped checks do not fail the run.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	resetTerminal()
	fmt.Fprintln(w, "murmur doctor - system diagnostics")
	fmt.Fprintln(w, "==================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		msg, err := c.Run(cctx)
		cancel()
		switch {
		case errors.Is(err, ErrSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", msg)
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", msg)
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}

func checkWorker(cfg config.Worker) (string, error) {
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return "", fmt.Errorf("worker command %q not found: %w", cfg.Command, err)
	}
	if len(cfg.Args) > 0 && filepath.Ext(cfg.Args[0]) == ".py" {
		script := cfg.Args[0]
		if !filepath.IsAbs(script) && cfg.Dir != "" {
			script = filepath.Join(cfg.Dir, script)
		}
		if _, err := os.Stat(script); err != nil {
			return "", fmt.Errorf("worker script: %w", err)
		}
	}
	return fmt.Sprintf("%s (model %s)", path, cfg.Model), nil
}

func checkHotkeys(cfg config.Hotkeys) (string, error) {
	for _, s := range []string{cfg.Hold, cfg.Toggle, cfg.Notes} {
		if s == "" {
			continue
		}
		if _, err := hotkey.ParseCombo(s); err != nil {
			return "", err
		}
	}
	return hotkey.Diagnose()
}

func checkClipboard(ctx context.Context) (string, error) {
	if !clipboard.Available() {
		return "", clipboard.ErrUnsupported
	}
	want := fmt.Sprintf("murmur-doctor-%d", time.Now().UnixNano())
	prev, _ := clipboard.Read()

	type result struct {
		got string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		if err := clipboard.Copy(want); err != nil {
			ch <- result{err: fmt.Errorf("write: %w", err)}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			err = fmt.Errorf("read: %w", err)
		}
		ch <- result{got: got, err: err}
	}()

	select {
	case r := <-ch:
		clipboard.Copy(prev)
		if r.err != nil {
			return "", r.err
		}
		if r.got != want {
			return "", fmt.Errorf("clipboard mismatch: wrote %q, got %q", want, r.got)
		}
		return "clipboard write/read verified", nil
	case <-ctx.Done():
		return "", errors.New("clipboard timed out (clipboard tool hung, compositor not accessible?)")
	}
}

func checkKeys() (string, error) {
	if err := clipboard.Init(); err != nil {
		return "", fmt.Errorf("%w (on Linux: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput)", err)
	}
	return clipboard.Verify()
}

func checkLLM(ctx context.Context, cfg config.LLM) (string, error) {
	if !cfg.Enabled {
		return "llm processing disabled", ErrSkipped
	}
	switch cfg.Backend {
	case "service":
		svc, err := transform.StartService(ctx, worker.Config{Command: cfg.Command, Args: cfg.Args})
		if err != nil {
			return "", err
		}
		defer svc.Close()
		res, err := svc.Check(ctx)
		if err != nil {
			return "", fmt.Errorf("llm service check: %w", err)
		}
		if !res.Exists {
			return "", fmt.Errorf("llm model missing at %s", res.Path)
		}
		if !res.Ready {
			load, err := svc.Load(ctx)
			if err != nil || !load.Success {
				return "", fmt.Errorf("llm model failed to load: %v", err)
			}
		}
		return "llm service ready (" + res.Path + ")", nil
	default:
		o := transform.NewOpenAI(transform.OpenAIConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey(), Model: cfg.Model})
		if err := o.Ping(ctx); err != nil {
			return "", fmt.Errorf("%s: %w", cfg.BaseURL, err)
		}
		return fmt.Sprintf("%s reachable (model %s)", cfg.BaseURL, cfg.Model), nil
	}
}
