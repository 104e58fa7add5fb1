// Package ignore evaluates incoming error records against admin-defined
// suppression rules.
package ignore

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/errsink/errsink/pkg/models"
)

// OrderFunc sorts the pattern slice into evaluation order before matching.
// The first active pattern that matches wins.
type OrderFunc func([]*models.IgnorePattern)

// DefaultOrder evaluates patterns by pattern_type ascending, then id
// descending. No specificity rule exists beyond this iteration order; the
// order is injectable so operators can change precedence without code edits.
func DefaultOrder(patterns []*models.IgnorePattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].PatternType != patterns[j].PatternType {
			return patterns[i].PatternType < patterns[j].PatternType
		}
		return patterns[i].ID > patterns[j].ID
	})
}

// Matcher evaluates records against pattern sets. Compiled regexes are
// memoized; a Matcher is safe for concurrent use.
type Matcher struct {
	order OrderFunc

	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewMatcher creates a Matcher. A nil order uses DefaultOrder.
func NewMatcher(order OrderFunc) *Matcher {
	if order == nil {
		order = DefaultOrder
	}
	return &Matcher{order: order, compiled: make(map[string]*regexp.Regexp)}
}

// Match returns the first active pattern that matches rec, or nil.
func (m *Matcher) Match(rec *models.ErrorRecord, patterns []*models.IgnorePattern) *models.IgnorePattern {
	ordered := make([]*models.IgnorePattern, 0, len(patterns))
	for _, p := range patterns {
		if p.IsActive {
			ordered = append(ordered, p)
		}
	}
	m.order(ordered)

	for _, p := range ordered {
		if m.matches(rec, p) {
			return p
		}
	}
	return nil
}

func (m *Matcher) matches(rec *models.ErrorRecord, p *models.IgnorePattern) bool {
	switch p.PatternType {
	case models.PatternExactMessage:
		return rec.ErrorMessage == p.PatternValue
	case models.PatternMessageContains:
		return p.PatternValue != "" && strings.Contains(rec.ErrorMessage, p.PatternValue)
	case models.PatternExactSource:
		return rec.ErrorSource != "" && rec.ErrorSource == p.PatternValue
	case models.PatternSourceContains:
		return p.PatternValue != "" && rec.ErrorSource != "" &&
			strings.Contains(rec.ErrorSource, p.PatternValue)
	case models.PatternType:
		return rec.ErrorType == p.PatternValue
	case models.PatternRegex:
		re := m.compile(p.PatternValue)
		// Compile failure is treated as no-match, never an error.
		return re != nil && re.MatchString(rec.ErrorMessage)
	}
	return false
}

func (m *Matcher) compile(pattern string) *regexp.Regexp {
	m.mu.RLock()
	re, ok := m.compiled[pattern]
	m.mu.RUnlock()
	if ok {
		return re
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		compiled = nil
	}
	m.mu.Lock()
	m.compiled[pattern] = compiled
	m.mu.Unlock()
	return compiled
}
