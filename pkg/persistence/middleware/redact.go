package middleware

import (
	"context"
	"regexp"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
)

// redactedPlaceholder replaces every pattern match in persisted text.
const redactedPlaceholder = "[redacted]"

type redactionMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks substrings matching
// the patterns before a record is persisted. Model outputs echo their
// inputs, so secrets handed to a run (tokens, credentials, emails) tend to
// resurface in node outputs; redaction at the store boundary catches them
// regardless of which star leaked them.
//
// Redaction is one-way: loads return the masked text.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.RunStore) ports.RunStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) SaveRun(ctx context.Context, run domain.RunRecord) error {
	run.Input = m.mask(run.Input)
	run.FinalOutput = m.mask(run.FinalOutput)
	run.Error = m.mask(run.Error)
	return m.next.SaveRun(ctx, run)
}

func (m *redactionMiddleware) LoadRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	return m.next.LoadRun(ctx, runID)
}

func (m *redactionMiddleware) ListRuns(ctx context.Context) ([]domain.RunRecord, error) {
	return m.next.ListRuns(ctx)
}

func (m *redactionMiddleware) SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error {
	rec.Output = m.mask(rec.Output)
	rec.Error = m.mask(rec.Error)
	return m.next.SaveNodeRecord(ctx, rec)
}

func (m *redactionMiddleware) LoadNodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error) {
	return m.next.LoadNodeRecords(ctx, runID)
}

func (m *redactionMiddleware) DeleteRun(ctx context.Context, runID string) error {
	return m.next.DeleteRun(ctx, runID)
}

func (m *redactionMiddleware) mask(value string) string {
	for _, p := range m.patterns {
		value = p.ReplaceAllString(value, redactedPlaceholder)
	}
	return value
}
