// Package transform rewrites final transcripts into the user's chosen style.
// A fast rule-based rewrite always runs; an optional secondary rewrite (an
// LLM backend) is tried first under a timeout and discarded on any failure.
package transform

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"murmur/log"
)

type Style string

const (
	Formal     Style = "formal"
	Casual     Style = "casual"
	VeryCasual Style = "very_casual"
	Excited    Style = "excited"
)

type Category string

const (
	Personal Category = "personal"
	Work     Category = "work"
	Email    Category = "email"
	Other    Category = "other"
)

// ParseStyle maps a settings value to a Style. Unknown values are formal.
func ParseStyle(s string) Style {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case Formal, Casual, VeryCasual, Excited:
		return st
	default:
		return Formal
	}
}

// ParseCategory maps a settings value to a Category. Unknown values are
// personal.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Personal, Work, Email, Other:
		return c
	default:
		return Personal
	}
}

// Request is one transformation input. It is passed by value and never
// modified.
type Request struct {
	Text     string
	Style    Style
	Category Category
}

var ErrEmptyOutput = errors.New("transform: empty output")

// Transformer is a secondary rewrite stage.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, req Request) (string, error)
}

const (
	DefaultTimeout = 5 * time.Second
	// minOutputRunes is the floor below which a secondary result is treated
	// as a failed generation.
	minOutputRunes = 2
)

// Pipeline runs the secondary stage (when present and enabled) and the rule
// stage. It never returns an error.
type Pipeline struct {
	rules     *Rules
	secondary Transformer
	timeout   time.Duration
}

type Option func(*Pipeline)

func WithSecondary(t Transformer) Option {
	return func(p *Pipeline) { p.secondary = t }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPipeline(rules *Rules, opts ...Option) *Pipeline {
	if rules == nil {
		rules = NewRules("")
	}
	p := &Pipeline{rules: rules, timeout: DefaultTimeout}
	for _, o := range opts {
		o(p)
	}
	return p
}

// HasSecondary reports whether a secondary stage is configured.
func (p *Pipeline) HasSecondary() bool { return p.secondary != nil }

// Transform rewrites req.Text. When secondary is true and a secondary stage
// is configured its output is used if it is acceptable; otherwise the
// rule-based rewrite is returned.
func (p *Pipeline) Transform(ctx context.Context, req Request, secondary bool) string {
	start := time.Now()
	base := p.rules.Apply(req)
	if !secondary || p.secondary == nil {
		log.TransformResult("rules", time.Since(start), "")
		return base
	}

	out, err := p.runSecondary(ctx, req)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		log.Warnf("%s transform discarded: %v", p.secondary.Name(), err)
		log.TransformResult("rules", time.Since(start), reason)
		return base
	}
	if reason := rejectReason(req.Text, out); reason != "" {
		log.TransformResult("rules", time.Since(start), reason)
		return base
	}
	log.TransformResult(p.secondary.Name(), time.Since(start), "")
	return out
}

// runSecondary bounds the secondary stage by the pipeline timeout even if the
// implementation ignores its context.
func (p *Pipeline) runSecondary(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := p.secondary.Transform(ctx, req)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		return strings.TrimSpace(r.text), r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func rejectReason(in, out string) string {
	switch {
	case out == "":
		return "empty"
	case out == strings.TrimSpace(in):
		return "unchanged"
	case utf8.RuneCountInString(out) < minOutputRunes:
		return "too_short"
	}
	return ""
}
