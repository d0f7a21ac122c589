package config

import (
	"net"
	"strconv"
	"time"
)

// Settings are the process-level options resolved from flags, environment
// and defaults.
type Settings struct {
	PublicPath       string        `yaml:"public_path"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	OutDir           string        `yaml:"out_dir"`
	Root             string        `yaml:"root"`
	APITarget        string        `yaml:"api_target"`
	APIRulePosition  string        `yaml:"api_rule_position"` // "first" | "last"
	FineReportTarget string        `yaml:"finereport_target"`
	Debug            bool          `yaml:"debug"`
	RulesFile        string        `yaml:"rules_file"`
	Watch            bool          `yaml:"watch"`
	FallbackURL      string        `yaml:"fallback_url"`
	UpstreamTimeout  time.Duration `yaml:"upstream_timeout"` // 0 = none
	LogFormat        string        `yaml:"log_format"`       // "console" | "json"
	AccessLog        bool          `yaml:"access_log"`
}

// Addr is the listen address; an empty host binds all interfaces.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RuleSpec is one rule as declared in a rules file or by the built-in table.
type RuleSpec struct {
	Name            string               `yaml:"name"`
	Match           string               `yaml:"match"`
	Target          string               `yaml:"target"`
	ChangeOrigin    bool                 `yaml:"change_origin,omitempty"`
	Secure          *bool                `yaml:"secure,omitempty"` // nil => true
	WS              bool                 `yaml:"ws,omitempty"`
	Rewrite         *RewriteSpec         `yaml:"rewrite,omitempty"`
	RequestHeaders  *RequestHeadersSpec  `yaml:"request_headers,omitempty"`
	ResponseHeaders *ResponseHeadersSpec `yaml:"response_headers,omitempty"`
	DebugLog        bool                 `yaml:"debug_log,omitempty"`
	RateLimit       *RateLimitSpec       `yaml:"rate_limit,omitempty"`
}

// RewriteSpec sets either StripPrefix or Pattern (with Replace).
type RewriteSpec struct {
	StripPrefix string `yaml:"strip_prefix,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
	Replace     string `yaml:"replace,omitempty"`
}

type RequestHeadersSpec struct {
	Forwarded      bool   `yaml:"forwarded"`
	ForwardedProto string `yaml:"forwarded_proto,omitempty"`
	RealIP         bool   `yaml:"real_ip,omitempty"`
}

type ResponseHeadersSpec struct {
	Location *LocationSpec `yaml:"location,omitempty"`
	StripCSP bool          `yaml:"strip_csp,omitempty"`
	NoSniff  bool          `yaml:"nosniff,omitempty"`
}

type LocationSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type RateLimitSpec struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func boolPtr(b bool) *bool { return &b }
