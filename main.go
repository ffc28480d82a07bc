package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/term"

	"murmur/beep"
	"murmur/clipboard"
	"murmur/config"
	"murmur/doctor"
	"murmur/hotkey"
	"murmur/log"
	"murmur/session"
	"murmur/shutdown"
	"murmur/sink"
	"murmur/transform"
	"murmur/worker"
)

var version = "dev"

func initCrashLog() {
	f, err := os.OpenFile(filepath.Join(log.Dir(), "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func run() int {
	configFlag := flag.String("config", "", "config file (default: $MURMUR_CONFIG or the OS config dir)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	tuiFlag := flag.Bool("tui", term.IsTerminal(int(os.Stdout.Fd())), "Run with terminal UI")
	notifyFlag := flag.Bool("notify", true, "Show desktop notifications for notices")
	beepFlag := flag.Bool("beep", true, "Play audible cues")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		return 0
	}

	if p := os.Getenv("MURMUR_LOG_PATH"); p != "" && *logPathFlag == "" {
		*logPathFlag = p
	}
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	cfgPath, err := config.ResolvePath(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	store, err := config.NewStore(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if *doctorFlag {
		return doctor.Run(ctx, os.Stdout, doctor.Checks(store.Config()))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.Infof("murmur %s starting, config %s", version, cfgPath)

	if *testFlag {
		return runTestMode(ctx, store, os.Stdin, os.Stdout)
	}
	if !*beepFlag {
		beep.Disable()
	}
	return runDesktop(ctx, store, *tuiFlag, *notifyFlag)
}

func runDesktop(ctx context.Context, store *config.Store, tui, notify bool) int {
	cfg := store.Config()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	strategies, err := sink.Build(cfg.Sink.Strategies, cfg.Sink.RestoreAfter, cfg.Sink.TypistRunes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := clipboard.Init(); err != nil {
		log.Warnf("keystroke init: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: paste init failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	}
	dispatcher := sink.New(strategies...)
	defer dispatcher.Close()

	pipeline, closeXform := buildTransform(ctx, cfg)
	defer closeXform()

	speech := worker.NewSpeech(worker.SpeechConfig{
		Process: worker.Config{
			Command:   cfg.Worker.Command,
			Args:      cfg.Worker.Args,
			Dir:       cfg.Worker.Dir,
			Env:       []string{"WHISPER_MODEL=" + cfg.Worker.Model},
			StopGrace: cfg.Worker.StopGrace,
		},
		MaxRestarts:  cfg.Worker.MaxRestarts,
		RestartDelay: cfg.Worker.RestartDelay,
	}, nil)

	ctrl := session.New(session.Deps{
		Worker:      speech,
		Sink:        dispatcher,
		Transformer: pipeline,
		Settings:    store,
		UI:          desktopUI{notify: notify},
		History:     historyLog{},
		Notes:       notesLog{},
	}, session.WithFailSafe(cfg.Dictation.FailSafe))
	speech.Attach(ctrl)

	bindings, help, err := buildBindings(cfg.Hotkeys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := bindings.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkeys: %v\n", err)
		return 1
	}
	defer bindings.Unregister()

	store.OnChange(func(next config.Config) {
		ctrl.PreferencesChanged()
		if next.Hotkeys != cfg.Hotkeys || next.Worker.Command != cfg.Worker.Command {
			log.Warn("hotkey and worker changes apply after restart")
		}
	})
	if err := store.Watch(ctx); err != nil {
		log.Warnf("config hot reload disabled: %v", err)
	}

	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		ctrl.Run(ctx)
	}()
	go bindings.Forward(ctx, ctrl)

	if err := speech.Start(ctx); err != nil {
		log.Errorf("speech worker start: %v", err)
		fmt.Fprintf(os.Stderr, "Error starting speech worker: %v\n", err)
		return 1
	}
	defer speech.Stop()

	if tui {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(help)
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			cancel()
		}()
		defer tuiProgram.Quit()
	} else {
		for _, h := range help {
			fmt.Println(h)
		}
	}

	<-ctx.Done()
	<-ctrlDone
	log.Info("shutting down")
	return 0
}

func buildBindings(cfg config.Hotkeys) (hotkey.Bindings, []string, error) {
	var b hotkey.Bindings
	var help []string
	for _, e := range []struct {
		combo string
		slot  *hotkey.Hotkey
		what  string
	}{
		{cfg.Hold, &b.Hold, "hold to dictate"},
		{cfg.Toggle, &b.Toggle, "toggle dictation"},
		{cfg.Notes, &b.Notes, "toggle notes"},
	} {
		if e.combo == "" {
			continue
		}
		c, err := hotkey.ParseCombo(e.combo)
		if err != nil {
			return b, nil, err
		}
		*e.slot = hotkey.New(c)
		help = append(help, c.String()+"  "+e.what)
	}
	return b, help, nil
}

// buildTransform assembles the rule pipeline and, when configured, its
// secondary backend. The returned func releases the backend.
func buildTransform(ctx context.Context, cfg config.Config) (*transform.Pipeline, func()) {
	rules := transform.NewRules(cfg.Dictation.Language)
	opts := []transform.Option{transform.WithTimeout(cfg.LLM.Timeout)}
	closer := func() {}

	switch cfg.LLM.Backend {
	case "service":
		if !cfg.LLM.Enabled {
			break
		}
		svc, err := transform.StartService(ctx, worker.Config{Command: cfg.LLM.Command, Args: cfg.LLM.Args})
		if err != nil {
			log.Warnf("llm service unavailable, using rules only: %v", err)
			break
		}
		opts = append(opts, transform.WithSecondary(svc))
		closer = func() {
			if err := svc.Close(); err != nil && !errors.Is(err, transform.ErrServiceClosed) {
				log.Warnf("llm service close: %v", err)
			}
		}
	default:
		opts = append(opts, transform.WithSecondary(transform.NewOpenAI(transform.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey(),
			Model:   cfg.LLM.Model,
		})))
	}
	return transform.NewPipeline(rules, opts...), closer
}
