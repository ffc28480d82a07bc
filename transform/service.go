package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"murmur/log"
	"murmur/worker"
)

var ErrServiceClosed = errors.New("transform: llm service not running")

// LineSender queues one line for a helper process.
type LineSender interface {
	Send(line string) bool
}

// Service talks to the local LLM helper over its line protocol:
//
//	TRANSFORM:<style>:<category>:<text>  -> transformed text, "" on failure
//	CHECK | LOAD | STATUS                -> one JSON object
//
// The helper answers every request with exactly one line, in order. Requests
// are serialized; a request abandoned by its context leaves a reply in
// flight that the next request discards.
type Service struct {
	conn    LineSender
	proc    *worker.Process
	replies chan string

	mu   sync.Mutex
	skip int
}

func NewService(conn LineSender) *Service {
	return &Service{conn: conn, replies: make(chan string, 16)}
}

// StartService spawns the helper described by cfg and connects to it.
func StartService(ctx context.Context, cfg worker.Config) (*Service, error) {
	s := NewService(nil)
	cfg.KeepEmptyLines = true
	proc, err := worker.Start(ctx, "llm", cfg, s.Deliver, func(err error) {
		if err != nil {
			log.Warnf("llm service exited: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("starting llm service: %w", err)
	}
	s.mu.Lock()
	s.conn = proc
	s.proc = proc
	s.mu.Unlock()
	return s, nil
}

// Deliver hands one reply line from the helper to the waiting request.
func (s *Service) Deliver(line string) {
	select {
	case s.replies <- line:
	default:
		log.Warnf("llm service reply dropped, no request waiting: %q", line)
	}
}

func (s *Service) Close() error {
	if s.proc == nil {
		return nil
	}
	return s.proc.Stop()
}

func (s *Service) Name() string { return "llm_service" }

func (s *Service) Transform(ctx context.Context, req Request) (string, error) {
	text := strings.Join(strings.Fields(req.Text), " ")
	line := fmt.Sprintf("TRANSFORM:%s:%s:%s", ParseStyle(string(req.Style)), ParseCategory(string(req.Category)), text)
	reply, err := s.request(ctx, line)
	if err != nil {
		return "", err
	}
	out := cleanOutput(reply)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

type ServiceStatus struct {
	Ready       bool   `json:"ready"`
	ModelPath   string `json:"model_path"`
	ModelExists bool   `json:"model_exists"`
}

type CheckResult struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
	Ready  bool   `json:"ready"`
}

type LoadResult struct {
	Success bool `json:"success"`
	Ready   bool `json:"ready"`
}

func (s *Service) Status(ctx context.Context) (ServiceStatus, error) {
	var st ServiceStatus
	return st, s.requestJSON(ctx, "STATUS", &st)
}

func (s *Service) Check(ctx context.Context) (CheckResult, error) {
	var r CheckResult
	return r, s.requestJSON(ctx, "CHECK", &r)
}

func (s *Service) Load(ctx context.Context) (LoadResult, error) {
	var r LoadResult
	return r, s.requestJSON(ctx, "LOAD", &r)
}

func (s *Service) requestJSON(ctx context.Context, cmd string, v any) error {
	reply, err := s.request(ctx, cmd)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(reply), v); err != nil {
		return fmt.Errorf("%s reply %q: %w", cmd, reply, err)
	}
	return nil
}

func (s *Service) request(ctx context.Context, line string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.conn.Send(line) {
		return "", ErrServiceClosed
	}
	for {
		select {
		case reply := <-s.replies:
			if s.skip > 0 {
				s.skip--
				continue
			}
			return reply, nil
		case <-ctx.Done():
			s.skip++
			return "", ctx.Err()
		}
	}
}
