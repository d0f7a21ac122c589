package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FineReportPrefix   = "/finereport/"
	FineReportResource = "^/(webroot|decision|report|res|com|ReportServer)"
)

// BuiltinRules is the table used without a rules file: the optional API
// rule followed by the FineReport page and resource rules.
func BuiltinRules(s Settings, logger zerolog.Logger) ([]RuleSpec, error) {
	frBase := s.FineReportTarget
	if frBase == "" {
		return nil, fmt.Errorf("finereport_target: must not be empty")
	}
	if _, err := parseTarget(frBase); err != nil {
		return nil, fmt.Errorf("finereport_target: %w", err)
	}
	if !strings.HasSuffix(frBase, "/") {
		frBase += "/"
	}

	finereport := []RuleSpec{
		{
			Name:         "finereport",
			Match:        FineReportPrefix,
			Target:       frBase,
			ChangeOrigin: true,
			Secure:       boolPtr(false),
			WS:           true,
			Rewrite:      &RewriteSpec{StripPrefix: FineReportPrefix},
			RequestHeaders: &RequestHeadersSpec{
				Forwarded: true,
			},
			ResponseHeaders: &ResponseHeadersSpec{
				Location: &LocationSpec{From: frBase, To: FineReportPrefix},
			},
			DebugLog: s.Debug,
		},
		{
			Name:         "finereport-resources",
			Match:        FineReportResource,
			Target:       strings.TrimSuffix(frBase, "/"),
			ChangeOrigin: true,
			Secure:       boolPtr(false),
			DebugLog:     s.Debug,
		},
	}

	if s.APITarget == "" {
		logger.Warn().Msg("api target is empty; /api requests are not proxied (set DEVPROXY_API_TARGET)")
		return finereport, nil
	}
	api := RuleSpec{
		Name:         "api",
		Match:        "/api",
		Target:       s.APITarget,
		ChangeOrigin: true,
		Rewrite:      &RewriteSpec{Pattern: "^/api", Replace: ""},
		DebugLog:     s.Debug,
	}
	if s.APIRulePosition == "last" {
		return append(finereport, api), nil
	}
	return append([]RuleSpec{api}, finereport...), nil
}
