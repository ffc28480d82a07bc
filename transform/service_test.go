package transform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedHelper answers each request line through reply, mimicking the
// helper's stdout being fed back to Deliver.
type scriptedHelper struct {
	mu    sync.Mutex
	lines []string
	svc   *Service
	reply func(line string) (string, bool)
}

func (h *scriptedHelper) Send(line string) bool {
	h.mu.Lock()
	h.lines = append(h.lines, line)
	h.mu.Unlock()
	if out, ok := h.reply(line); ok {
		h.svc.Deliver(out)
	}
	return true
}

func newScripted(reply func(string) (string, bool)) (*Service, *scriptedHelper) {
	h := &scriptedHelper{reply: reply}
	s := NewService(h)
	h.svc = s
	return s, h
}

func TestServiceTransform(t *testing.T) {
	s, h := newScripted(func(line string) (string, bool) {
		return `"Hello, there."`, true
	})
	got, err := s.Transform(context.Background(), Request{Text: "hello\n  there", Style: Style("CASUAL"), Category: Work})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello, there." {
		t.Errorf("got %q", got)
	}
	if want := "TRANSFORM:casual:work:hello there"; h.lines[0] != want {
		t.Errorf("request line = %q, want %q", h.lines[0], want)
	}
}

func TestServiceEmptyReply(t *testing.T) {
	s, _ := newScripted(func(string) (string, bool) { return "", true })
	if _, err := s.Transform(context.Background(), Request{Text: "hi"}); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("err = %v, want ErrEmptyOutput", err)
	}
}

func TestServiceSkipsAbandonedReply(t *testing.T) {
	var n int
	s, _ := newScripted(func(string) (string, bool) {
		n++
		if n == 1 {
			return "", false
		}
		return "fresh", true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Transform(ctx, Request{Text: "first"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}

	// The helper finally answers the abandoned request.
	s.Deliver("stale")

	got, err := s.Transform(context.Background(), Request{Text: "second"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "fresh" {
		t.Errorf("got %q, stale reply leaked into the next request", got)
	}
}

func TestServiceJSONReplies(t *testing.T) {
	s, _ := newScripted(func(line string) (string, bool) {
		switch line {
		case "STATUS":
			return `{"ready":true,"model_path":"/m/q4.gguf","model_exists":true}`, true
		case "CHECK":
			return `{"exists":false,"path":"/m/q4.gguf","ready":false}`, true
		case "LOAD":
			return `not json`, true
		}
		return "", false
	})
	ctx := context.Background()

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Ready || !st.ModelExists || st.ModelPath != "/m/q4.gguf" {
		t.Errorf("status = %+v", st)
	}

	cr, err := s.Check(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cr.Exists || cr.Path != "/m/q4.gguf" {
		t.Errorf("check = %+v", cr)
	}

	if _, err := s.Load(ctx); err == nil {
		t.Error("expected error for malformed LOAD reply")
	}
}

func TestServiceClosed(t *testing.T) {
	s := NewService(nil)
	if _, err := s.Transform(context.Background(), Request{Text: "hi"}); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("err = %v, want ErrServiceClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on unstarted service: %v", err)
	}
}

func TestOpenAITransform(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"\"Hello there!\"\nDone."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "test", Model: "local"})
	got, err := o.Transform(context.Background(), Request{Text: "hello there", Style: Excited, Category: Personal})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello there!" {
		t.Errorf("got %q", got)
	}
	if gotReq.Model != "local" || len(gotReq.Messages) != 2 {
		t.Fatalf("request = %+v", gotReq)
	}
	if gotReq.Messages[0].Role != "system" || !strings.Contains(gotReq.Messages[0].Content, "excited") {
		t.Errorf("system message = %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Content != `"hello there"` {
		t.Errorf("user message = %q", gotReq.Messages[1].Content)
	}
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1"})
	p := NewPipeline(NewRules("en"), WithSecondary(o), WithTimeout(2*time.Second))
	if got := p.Transform(context.Background(), Request{Text: "hello"}, true); got != "Hello." {
		t.Errorf("got %q, want rule-based fallback", got)
	}
}
