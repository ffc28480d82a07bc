package transform

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRulesApply(t *testing.T) {
	rules := NewRules("en")
	tests := []struct {
		name  string
		style Style
		in    string
		want  string
	}{
		{"formal adds period", Formal, "hello there", "Hello there."},
		{"formal keeps question", Formal, "is it ready?", "Is it ready?"},
		{"formal sentences", Formal, "first one. second one", "First one. Second one."},
		{"formal pronoun", Formal, "yes i think i'm right", "Yes I think I'm right."},
		{"formal whitespace", Formal, "  too   many\tspaces ", "Too many spaces."},
		{"formal trailing comma", Formal, "well,", "Well."},
		{"formal abbreviation", Formal, "ask dr. smith", "Ask dr. smith."},
		{"casual drops period", Casual, "see you soon.", "See you soon"},
		{"casual keeps exclamation", Casual, "see you soon!", "See you soon!"},
		{"casual keeps ellipsis", Casual, "well...", "Well..."},
		{"very casual lowercases", VeryCasual, "See You Soon.", "see you soon"},
		{"excited", Excited, "we did it. it works", "We did it! It works!"},
		{"excited keeps question", Excited, "really?", "Really?"},
		{"unknown style is formal", Style("poetic"), "hello", "Hello."},
		{"empty", Formal, "   ", ""},
		{"hello there!", Formal, "Hello there!", "Hello there!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Apply(Request{Text: tt.in, Style: tt.style, Category: Personal})
			if got != tt.want {
				t.Errorf("Apply(%q, %s) = %q, want %q", tt.in, tt.style, got, tt.want)
			}
		})
	}
}

func TestRulesNonEnglishSkipsPronoun(t *testing.T) {
	rules := NewRules("it")
	if got := rules.Apply(Request{Text: "vado i lavori", Style: Formal}); got != "Vado i lavori." {
		t.Errorf("got %q", got)
	}
}

func TestParseStyleAndCategory(t *testing.T) {
	if ParseStyle(" Very_Casual ") != VeryCasual {
		t.Error("ParseStyle should normalize case and spaces")
	}
	if ParseStyle("") != Formal {
		t.Error("empty style should be formal")
	}
	if ParseCategory("EMAIL") != Email {
		t.Error("ParseCategory should normalize case")
	}
	if ParseCategory("misc") != Personal {
		t.Error("unknown category should be personal")
	}
}

func TestInstruction(t *testing.T) {
	got := Instruction(Excited, Email)
	if !strings.HasPrefix(got, "This is for email communication.") {
		t.Errorf("missing category context: %q", got)
	}
	if !strings.Contains(got, "exclamation marks") {
		t.Errorf("missing style prompt: %q", got)
	}
	if !strings.Contains(Instruction(Style("x"), Category("y")), "formal") {
		t.Error("unknown style should fall back to the formal prompt")
	}
}

func TestCleanOutput(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"Hello there."`, "Hello there."},
		{"  Hi!\nExplanation: ...", "Hi!"},
		{`"unbalanced`, `"unbalanced`},
		{"", ""},
		{"\"  spaced  \"\n\nmore", "spaced"},
	}
	for _, tt := range tests {
		if got := cleanOutput(tt.in); got != tt.want {
			t.Errorf("cleanOutput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type stubTransformer struct {
	out   string
	err   error
	block bool
	calls int
	mu    sync.Mutex
}

func (s *stubTransformer) Name() string { return "stub" }

func (s *stubTransformer) Transform(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		// Ignores ctx on purpose: the pipeline must still return.
		time.Sleep(time.Second)
	}
	return s.out, s.err
}

func TestPipelineSecondary(t *testing.T) {
	req := Request{Text: "hello there", Style: Formal, Category: Work}
	base := "Hello there."

	tests := []struct {
		name      string
		stub      *stubTransformer
		secondary bool
		want      string
	}{
		{"accepted", &stubTransformer{out: "Hello, there."}, true, "Hello, there."},
		{"disabled", &stubTransformer{out: "Hello, there."}, false, base},
		{"error", &stubTransformer{err: errors.New("boom")}, true, base},
		{"empty", &stubTransformer{out: "  "}, true, base},
		{"identical to input", &stubTransformer{out: "hello there"}, true, base},
		{"below floor", &stubTransformer{out: "H"}, true, base},
		{"trimmed", &stubTransformer{out: "  Greetings.  "}, true, "Greetings."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(NewRules("en"), WithSecondary(tt.stub))
			if got := p.Transform(context.Background(), req, tt.secondary); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !tt.secondary && tt.stub.calls != 0 {
				t.Error("secondary called while disabled")
			}
		})
	}
}

func TestPipelineSecondaryTimeout(t *testing.T) {
	stub := &stubTransformer{out: "Too late.", block: true}
	p := NewPipeline(NewRules("en"), WithSecondary(stub), WithTimeout(30*time.Millisecond))
	req := Request{Text: "ship it", Style: Excited}

	start := time.Now()
	got := p.Transform(context.Background(), req, true)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Transform took %v, timeout not enforced", elapsed)
	}
	if want := NewRules("en").Apply(req); got != want {
		t.Errorf("got %q, want rule-based %q", got, want)
	}
}

func TestPipelineWithoutSecondary(t *testing.T) {
	p := NewPipeline(nil)
	if p.HasSecondary() {
		t.Error("HasSecondary should be false")
	}
	if got := p.Transform(context.Background(), Request{Text: "ok"}, true); got != "Ok." {
		t.Errorf("got %q", got)
	}
}
