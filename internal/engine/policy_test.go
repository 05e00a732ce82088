package engine

import (
	"testing"
	"time"

	"github.com/rishimeka/astro/pkg/domain"
)

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 350 * time.Millisecond}, // capped
		{attempt: 4, want: 350 * time.Millisecond},
		{attempt: 0, want: 100 * time.Millisecond}, // clamped to first retry
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestParseEvalDecision(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.EdgeTag
	}{
		{name: "bare continue", text: "continue", want: domain.EdgeTagContinue},
		{name: "bare loop", text: "loop", want: domain.EdgeTagLoop},
		{name: "loop with punctuation", text: "Loop.", want: domain.EdgeTagLoop},
		{name: "padded continue", text: "  CONTINUE  ", want: domain.EdgeTagContinue},
		{name: "verbose loop", text: "I think we should loop again", want: domain.EdgeTagLoop},
		{name: "verbose continue", text: "definitely continue to the next step", want: domain.EdgeTagContinue},
		{name: "names neither", text: "yes", want: domain.EdgeTagContinue},
		{name: "names both", text: "we could loop, but continue", want: domain.EdgeTagContinue},
		{name: "empty", text: "", want: domain.EdgeTagContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseEvalDecision(tt.text); got != tt.want {
				t.Errorf("parseEvalDecision(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestPolicyFor(t *testing.T) {
	base := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	t.Run("no config keeps base", func(t *testing.T) {
		got := policyFor(base, domain.Star{})
		if got != base {
			t.Errorf("policyFor = %+v, want %+v", got, base)
		}
	})

	t.Run("config overrides", func(t *testing.T) {
		star := domain.Star{Config: map[string]any{
			"max_attempts": 5,
			"base_delay":   "2s",
			"max_delay":    "8s",
		}}
		got := policyFor(base, star)
		want := RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 8 * time.Second}
		if got != want {
			t.Errorf("policyFor = %+v, want %+v", got, want)
		}
	})

	t.Run("garbage durations ignored", func(t *testing.T) {
		star := domain.Star{Config: map[string]any{
			"base_delay": "soon",
			"max_delay":  -3,
		}}
		got := policyFor(base, star)
		if got != base {
			t.Errorf("policyFor = %+v, want %+v", got, base)
		}
	})
}

func TestRenderDirective(t *testing.T) {
	d := domain.Directive{System: "Be terse.", Template: "Review {{input}} and rate {{input}}."}

	system, prompt := renderDirective(d, "the draft")
	if system != "Be terse." {
		t.Errorf("system = %q", system)
	}
	if prompt != "Review the draft and rate the draft." {
		t.Errorf("prompt = %q", prompt)
	}

	_, passthrough := renderDirective(domain.Directive{}, "raw input")
	if passthrough != "raw input" {
		t.Errorf("empty template prompt = %q, want the input itself", passthrough)
	}
}

func TestConfirmationPrompt(t *testing.T) {
	node := domain.Node{ID: "n-deploy"}

	t.Run("config wins", func(t *testing.T) {
		star := domain.Star{Name: "Deploy", Config: map[string]any{"confirmation_prompt": "Ship it?"}}
		if got := confirmationPrompt(node, star); got != "Ship it?" {
			t.Errorf("prompt = %q", got)
		}
	})

	t.Run("star name fallback", func(t *testing.T) {
		if got := confirmationPrompt(node, domain.Star{Name: "Deploy"}); got != "Proceed with Deploy?" {
			t.Errorf("prompt = %q", got)
		}
	})

	t.Run("node id fallback", func(t *testing.T) {
		if got := confirmationPrompt(node, domain.Star{}); got != "Proceed with n-deploy?" {
			t.Errorf("prompt = %q", got)
		}
	})
}
