package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fabian4/devproxy/internal/hooks"
	"github.com/fabian4/devproxy/internal/model"
	"github.com/fabian4/devproxy/internal/rewrite"
	"github.com/fabian4/devproxy/internal/router"
)

// ErrNoRules is returned for a rules file that declares no rules.
var ErrNoRules = errors.New("rules: at least one rule is required")

type rawRules struct {
	Rules []RuleSpec `yaml:"rules"`
}

// LoadRules reads and validates a YAML rules file.
func LoadRules(path string) ([]RuleSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(b)
}

// ParseRules decodes a rules document. Unknown keys are rejected.
func ParseRules(b []byte) ([]RuleSpec, error) {
	var rr rawRules
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&rr); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if len(rr.Rules) == 0 {
		return nil, ErrNoRules
	}
	if err := normalize(rr.Rules); err != nil {
		return nil, err
	}
	return rr.Rules, nil
}

// normalize trims fields, fills default names and checks everything that
// does not need compiling.
func normalize(specs []RuleSpec) error {
	seen := make(map[string]int, len(specs))
	for i := range specs {
		s := &specs[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			s.Name = fmt.Sprintf("rule-%d", i)
		}
		if j, dup := seen[s.Name]; dup {
			return fmt.Errorf("rules[%d]: duplicate name %q (also rules[%d])", i, s.Name, j)
		}
		seen[s.Name] = i

		s.Match = strings.TrimSpace(s.Match)
		if s.Match == "" {
			return fmt.Errorf("rules[%d]: match is required", i)
		}
		s.Target = strings.TrimSpace(s.Target)
		if _, err := parseTarget(s.Target); err != nil {
			return fmt.Errorf("rules[%d]: target: %w", i, err)
		}
		if rw := s.Rewrite; rw != nil && rw.StripPrefix != "" && rw.Pattern != "" {
			return fmt.Errorf("rules[%d]: rewrite: strip_prefix and pattern are mutually exclusive", i)
		}
		if rl := s.RateLimit; rl != nil && (rl.RequestsPerSecond <= 0 || rl.Burst <= 0) {
			return fmt.Errorf("rules[%d]: rate_limit: requests_per_second and burst must be positive", i)
		}
	}
	return nil
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("must be http(s) URL with host, got %q", raw)
	}
	return u, nil
}

// Compile turns rule declarations into the rules of a router table, in
// declared order.
func Compile(specs []RuleSpec, logger zerolog.Logger) ([]model.Rule, error) {
	if err := normalize(specs); err != nil {
		return nil, err
	}
	rules := make([]model.Rule, 0, len(specs))
	for i, s := range specs {
		r, err := compileRule(s, logger)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func compileRule(s RuleSpec, logger zerolog.Logger) (model.Rule, error) {
	m, err := router.NewMatcher(s.Match)
	if err != nil {
		return model.Rule{}, fmt.Errorf("match: %w", err)
	}
	target, err := parseTarget(s.Target)
	if err != nil {
		return model.Rule{}, fmt.Errorf("target: %w", err)
	}

	r := model.Rule{
		Name:         s.Name,
		Matcher:      m,
		Target:       target,
		ChangeOrigin: s.ChangeOrigin,
		Secure:       s.Secure == nil || *s.Secure,
		WebSocket:    s.WS,
	}

	if rw := s.Rewrite; rw != nil {
		switch {
		case rw.StripPrefix != "":
			r.Rewrite = rewrite.StripPrefix(rw.StripPrefix)
		case rw.Pattern != "":
			fn, err := rewrite.Replace(rw.Pattern, rw.Replace)
			if err != nil {
				return model.Rule{}, fmt.Errorf("rewrite: %w", err)
			}
			r.Rewrite = fn
		}
	}

	if h := s.RequestHeaders; h != nil && h.Forwarded {
		r.OnRequest = append(r.OnRequest, hooks.Forwarded(hooks.ForwardedOptions{
			Proto:  h.ForwardedProto,
			RealIP: h.RealIP,
		}))
	}
	if h := s.ResponseHeaders; h != nil {
		if h.Location != nil && h.Location.From != "" {
			r.OnResponse = append(r.OnResponse, hooks.RewriteLocation(h.Location.From, h.Location.To))
		}
		if h.StripCSP || h.NoSniff {
			r.OnResponse = append(r.OnResponse, hooks.SecurityHeaders(h.StripCSP, h.NoSniff))
		}
	}
	if s.DebugLog {
		r.OnRequest = append(r.OnRequest, hooks.LogRequest(logger, s.Name))
		r.OnResponse = append(r.OnResponse, hooks.LogContentType(logger, s.Name))
	}
	if rl := s.RateLimit; rl != nil {
		r.RateLimit = &model.RateLimit{RequestsPerSecond: rl.RequestsPerSecond, Burst: rl.Burst}
	}
	return r, nil
}

// RuleSpecs returns the rules file declarations when one is configured,
// otherwise the built-in table.
func RuleSpecs(s Settings, logger zerolog.Logger) ([]RuleSpec, error) {
	if s.RulesFile != "" {
		return LoadRules(s.RulesFile)
	}
	return BuiltinRules(s, logger)
}

// Dump is what --print-config writes.
type Dump struct {
	Settings Settings   `yaml:"settings"`
	Rules    []RuleSpec `yaml:"rules"`
	Project  Project    `yaml:"project"`
}

func WriteYAML(w io.Writer, d Dump) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
