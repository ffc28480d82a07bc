package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	historyFile *os.File
	notesFile   *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: MURMUR_LOG_PATH environment variable
	if envPath := os.Getenv("MURMUR_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Init opens the diagnostics, history and notes logs in Dir. Until Init
// succeeds every logging call is a no-op.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	if diagFile, err = openAppend("diagnostics_log.txt"); err != nil {
		return err
	}
	if historyFile, err = openAppend("history_log.txt"); err != nil {
		diagFile.Close()
		return err
	}
	if notesFile, err = openAppend("notes_log.txt"); err != nil {
		diagFile.Close()
		historyFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	for _, f := range []**os.File{&diagFile, &historyFile, &notesFile} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(id, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("mode", mode).
		Msg("session_start")
}

func SessionEnd(id, mode, reason string, dur time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("mode", mode).
		Str("reason", reason).
		Float64("duration_s", dur.Seconds()).
		Msg("session_end")
}

func Transition(from, to, cause string) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("from", from).
		Str("to", to).
		Str("cause", cause).
		Msg("transition")
}

// TransformResult records one pass through the transformation pipeline.
// stage is the stage whose output was used ("rules" or the secondary name).
func TransformResult(stage string, elapsed time.Duration, fallback string) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("stage", stage).
		Float64("elapsed_ms", float64(elapsed.Microseconds())/1000)
	if fallback != "" {
		ev = ev.Str("fallback", fallback)
	}
	ev.Msg("transform")
}

func SinkDelivery(strategy string, runes int, elapsed time.Duration, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("strategy", strategy).
		Int("runes", runes).
		Float64("elapsed_ms", float64(elapsed.Microseconds())/1000).
		Msg("sink_delivery")
}

func WorkerStderr(name, line string) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("worker", name).
		Str("line", line).
		Msg("worker_stderr")
}

func HistoryText(text string) error {
	return appendText(&historyFile, text)
}

func NoteText(text string) error {
	return appendText(&notesFile, text)
}

func appendText(f **os.File, text string) error {
	if !logReady {
		return nil
	}
	logMu.Lock()
	defer logMu.Unlock()
	if *f == nil {
		return nil
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	_, err := (*f).WriteString(line)
	return err
}
