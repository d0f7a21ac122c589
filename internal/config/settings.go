package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type setting struct {
	key   string
	env   string
	flag  string
	def   any
	usage string
}

var settings = []setting{
	{"public_path", "VITE_APP_PUBLIC_PATH", "public-path", "/", "public base path the app is served under"},
	{"host", "DEVPROXY_HOST", "host", "", "listen host (empty = all interfaces)"},
	{"port", "DEVPROXY_PORT", "port", 3000, "listen port"},
	{"out_dir", "VITE_APP_OUT_DIR", "out-dir", "dist", "built output directory, relative to root"},
	{"root", "DEVPROXY_ROOT", "root", ".", "project root"},
	{"api_target", "DEVPROXY_API_TARGET", "api-target", "", "backend API base URL (empty disables the /api rule)"},
	{"api_rule_position", "DEVPROXY_API_RULE_POSITION", "api-rule-position", "first", "place the /api rule first or last"},
	{"finereport_target", "DEVPROXY_FINEREPORT_TARGET", "finereport-target", "http://localhost:8075/", "FineReport server base URL"},
	{"debug", "DEVPROXY_DEBUG", "debug", false, "debug logging"},
	{"rules_file", "DEVPROXY_RULES_FILE", "rules", "", "YAML rules file replacing the built-in table"},
	{"watch", "DEVPROXY_WATCH", "watch", false, "reload the rules file when it changes"},
	{"fallback_url", "DEVPROXY_FALLBACK_URL", "fallback-url", "", "dev server receiving unmatched requests"},
	{"upstream_timeout", "DEVPROXY_UPSTREAM_TIMEOUT", "upstream-timeout", "0s", "per-request upstream timeout (0 = none)"},
	{"log_format", "DEVPROXY_LOG_FORMAT", "log-format", "console", "log format: console or json"},
	{"access_log", "DEVPROXY_ACCESS_LOG", "access-log", true, "log one line per request"},
}

// RegisterFlags defines one flag per setting on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		switch d := s.def.(type) {
		case string:
			fs.String(s.flag, d, s.usage+" ($"+s.env+")")
		case int:
			fs.Int(s.flag, d, s.usage+" ($"+s.env+")")
		case bool:
			fs.Bool(s.flag, d, s.usage+" ($"+s.env+")")
		}
	}
}

// LoadSettings resolves settings with precedence flag > environment >
// default. fs must have been set up with RegisterFlags and parsed.
func LoadSettings(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	for _, s := range settings {
		if err := v.BindEnv(s.key, s.env); err != nil {
			return Settings{}, fmt.Errorf("bind env %s: %w", s.env, err)
		}
		v.SetDefault(s.key, s.def)
		if f := fs.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return Settings{}, fmt.Errorf("bind flag --%s: %w", s.flag, err)
			}
		}
	}

	timeout, err := parseTimeout(v.GetString("upstream_timeout"))
	if err != nil {
		return Settings{}, err
	}

	st := Settings{
		PublicPath:       v.GetString("public_path"),
		Host:             strings.TrimSpace(v.GetString("host")),
		Port:             v.GetInt("port"),
		OutDir:           v.GetString("out_dir"),
		Root:             v.GetString("root"),
		APITarget:        strings.TrimSpace(v.GetString("api_target")),
		APIRulePosition:  strings.ToLower(strings.TrimSpace(v.GetString("api_rule_position"))),
		FineReportTarget: strings.TrimSpace(v.GetString("finereport_target")),
		Debug:            v.GetBool("debug"),
		RulesFile:        v.GetString("rules_file"),
		Watch:            v.GetBool("watch"),
		FallbackURL:      strings.TrimSpace(v.GetString("fallback_url")),
		UpstreamTimeout:  timeout,
		LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		AccessLog:        v.GetBool("access_log"),
	}
	if err := st.validate(); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// parseTimeout requires a unit on any non-zero value. A bare "30" would
// otherwise be read as 30ns.
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("upstream_timeout: %q needs a unit such as 30s or 500ms", raw)
	}
	return d, nil
}

func (s Settings) validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port: %d out of range", s.Port)
	}
	switch s.APIRulePosition {
	case "first", "last":
	default:
		return fmt.Errorf("api_rule_position: must be first or last, got %q", s.APIRulePosition)
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format: must be console or json, got %q", s.LogFormat)
	}
	if s.UpstreamTimeout < 0 {
		return fmt.Errorf("upstream_timeout: must not be negative")
	}
	if s.Watch && s.RulesFile == "" {
		return fmt.Errorf("watch: requires a rules file")
	}
	if s.OutDir == "" {
		return fmt.Errorf("out_dir: must not be empty")
	}
	return nil
}
