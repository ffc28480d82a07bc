// Package worker runs helper processes that speak a newline-delimited text
// protocol on stdin/stdout, and supervises the speech-recognition worker.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"murmur/log"
	"murmur/protocol"
)

var (
	ErrUnexpectedExit = errors.New("worker exited unexpectedly")
	ErrStopped        = errors.New("worker stopped")
)

// Config describes how to launch a helper process.
type Config struct {
	Command string
	Args    []string
	Env     []string // KEY=VALUE, appended to the parent environment
	Dir     string

	// QueueSize bounds outbound lines waiting for the writer.
	QueueSize int
	// StopGrace is how long Stop waits after closing stdin before killing.
	StopGrace time.Duration
	// KeepEmptyLines delivers blank stdout lines instead of dropping them.
	KeepEmptyLines bool
}

const (
	defaultQueueSize = 64
	defaultStopGrace = 2 * time.Second
)

// Process is a running helper. Lines written with Send are delivered in
// order; stdout lines are passed to the line callback from a single
// goroutine.
type Process struct {
	name     string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	queue    chan string
	quit     chan struct{}
	done     chan struct{}
	grace    time.Duration
	stopping atomic.Bool
	stopOnce sync.Once
}

// Start launches the process. onLine receives each framed stdout line;
// onExit is called once when the process is gone, with nil if Stop was
// requested.
func Start(ctx context.Context, name string, cfg Config, onLine func(string), onExit func(error)) (*Process, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%s: no command configured", name)
	}
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Dir = cfg.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	grace := cfg.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	p := &Process{
		name:  name,
		cmd:   cmd,
		stdin: stdin,
		queue: make(chan string, queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		grace: grace,
	}
	log.Infof("%s started: pid=%d cmd=%s", name, cmd.Process.Pid, cfg.Command)

	var g errgroup.Group
	g.Go(func() error { return readLines(stdout, cfg.KeepEmptyLines, onLine) })
	g.Go(func() error { return p.drainStderr(stderr) })
	go p.writeLoop()

	go func() {
		readErr := g.Wait()
		waitErr := cmd.Wait()
		close(p.done)
		onExit(p.exitError(readErr, waitErr))
	}()
	return p, nil
}

func (p *Process) exitError(readErr, waitErr error) error {
	if p.stopping.Load() {
		log.Infof("%s stopped", p.name)
		return nil
	}
	err := waitErr
	if err == nil {
		err = readErr
	}
	if err == nil {
		err = ErrUnexpectedExit
	} else {
		err = fmt.Errorf("%w: %v", ErrUnexpectedExit, err)
	}
	log.Errorf("%s: %v", p.name, err)
	return err
}

func readLines(r io.Reader, keepEmpty bool, onLine func(string)) error {
	reader := protocol.Reader{KeepEmpty: keepEmpty}
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range reader.Feed(buf[:n]) {
				onLine(line)
			}
		}
		if err != nil {
			if line := reader.Flush(); line != "" {
				onLine(line)
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (p *Process) drainStderr(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			log.WorkerStderr(p.name, line)
		}
	}
	return nil
}

func (p *Process) writeLoop() {
	defer p.stdin.Close()
	for {
		select {
		case line := <-p.queue:
			if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
				log.Warnf("%s: write %q: %v", p.name, line, err)
			}
		case <-p.quit:
			return
		case <-p.done:
			return
		}
	}
}

// Send queues one line without waiting for it to be written. Newlines inside
// line are folded to spaces. It reports false if the process is gone or the
// queue is full.
func (p *Process) Send(line string) bool {
	line = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(line)
	select {
	case <-p.done:
		return false
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.queue <- line:
		return true
	default:
		log.Warnf("%s: command queue full, dropped %q", p.name, line)
		return false
	}
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Pid returns the OS process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Stop closes stdin, waits up to the grace period for the process to exit,
// then kills it.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		close(p.quit)
	})
	select {
	case <-p.done:
		return nil
	case <-time.After(p.grace):
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%s: kill: %w", p.name, err)
	}
	<-p.done
	return nil
}
