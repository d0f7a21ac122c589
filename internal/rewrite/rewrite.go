// Package rewrite builds path rewrite functions for proxy rules.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fabian4/devproxy/internal/model"
)

// StripPrefix removes prefix from the start of the path. Paths without the
// prefix are returned unchanged.
func StripPrefix(prefix string) model.RewriteFunc {
	return func(path string) string {
		return strings.TrimPrefix(path, prefix)
	}
}

// Replace substitutes the first match of expr with repl. repl may use
// $1-style references to submatches.
func Replace(expr, repl string) (model.RewriteFunc, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return func(path string) string {
		loc := re.FindStringSubmatchIndex(path)
		if loc == nil {
			return path
		}
		var dst []byte
		dst = re.ExpandString(dst, repl, path, loc)
		return path[:loc[0]] + string(dst) + path[loc[1]:]
	}, nil
}
