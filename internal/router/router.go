package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fabian4/devproxy/internal/model"
)

// Prefix matches paths starting with a literal string. Unlike a path-segment
// prefix, "/api" also matches "/apiary".
type Prefix string

func (p Prefix) Match(path string) bool { return strings.HasPrefix(path, string(p)) }
func (p Prefix) Pattern() string        { return string(p) }

// Regexp matches when the expression matches at the start of the path,
// whether or not the expression itself is anchored with "^".
type Regexp struct {
	re *regexp.Regexp
}

func NewRegexp(expr string) (*Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return &Regexp{re: re}, nil
}

func (r *Regexp) Match(path string) bool {
	loc := r.re.FindStringIndex(path)
	return loc != nil && loc[0] == 0
}

func (r *Regexp) Pattern() string { return r.re.String() }

// NewMatcher follows the dev-server convention: a pattern starting with "^"
// is a regular expression, anything else is a literal prefix.
func NewMatcher(pattern string) (model.Matcher, error) {
	if strings.HasPrefix(pattern, "^") {
		return NewRegexp(pattern)
	}
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("literal prefix %q must start with '/'", pattern)
	}
	return Prefix(pattern), nil
}

// Table is an ordered, read-only rule list. Declaration order is the match
// order; there is no most-specific resolution.
type Table struct {
	rules []model.Rule
}

func New(rules []model.Rule) *Table {
	rs := make([]model.Rule, len(rules))
	copy(rs, rules)
	return &Table{rules: rs}
}

// Match returns the first rule whose matcher accepts path, or nil.
// Upgrade requests only consider rules with WebSocket enabled.
func (t *Table) Match(path string, upgrade bool) *model.Rule {
	if t == nil {
		return nil
	}
	for i := range t.rules {
		r := &t.rules[i]
		if upgrade && !r.WebSocket {
			continue
		}
		if r.Matcher.Match(path) {
			return r
		}
	}
	return nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Rules returns a copy of the table in match order.
func (t *Table) Rules() []model.Rule {
	if t == nil {
		return nil
	}
	out := make([]model.Rule, len(t.rules))
	copy(out, t.rules)
	return out
}
