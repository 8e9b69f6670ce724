package ingest

import (
	"fmt"
	"os"
	"regexp"

	"sigs.k8s.io/yaml"
)

// Generated and vendored paths produce noise summaries, so they are skipped
// before summarization/embedding. Parsed hunks are still persisted.
var ignorePatternMap = map[string]string{
	"package-lock":     `package-lock\.json$`,
	"yarn-lock":        `yarn\.lock$`,
	"pnpm-lock":        `pnpm-lock\.yaml$`,
	"go-sum":           `go\.sum$`,
	"go-work-sum":      `go\.work\.sum$`,
	"vendor":           `(^|/)vendor/`,
	"node_modules":     `(^|/)node_modules/`,
	"generated-go":     `\.(?:pb|pb\.gw|pb\.json|pb\.grpc)\.go$`,
	"generated-client": `\.generated\.(?:ts|js|py|go|rs|java)$`,
	"snapshots":        `\.snap$`,
	"lockfiles":        `\.lock$`,
	"generated-json":   `.*\.swagger\.json$`,
	"minified":         `\.min\.(?:js|css)$`,
}

// IgnoreRules is the shape of an optional YAML rules file adding
// deployment-specific patterns to the built-in set.
type IgnoreRules struct {
	Patterns map[string]string `json:"patterns"`
}

type PathFilter struct {
	patterns map[string]*regexp.Regexp
}

// NewPathFilter compiles the built-in ignore patterns, merged with rules
// from the optional YAML file at rulesPath.
func NewPathFilter(rulesPath string) (*PathFilter, error) {
	merged := make(map[string]string, len(ignorePatternMap))
	for reason, pattern := range ignorePatternMap {
		merged[reason] = pattern
	}

	if rulesPath != "" {
		raw, err := os.ReadFile(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("read ignore rules %s: %w", rulesPath, err)
		}
		var rules IgnoreRules
		if err := yaml.Unmarshal(raw, &rules); err != nil {
			return nil, fmt.Errorf("parse ignore rules %s: %w", rulesPath, err)
		}
		for reason, pattern := range rules.Patterns {
			merged[reason] = pattern
		}
	}

	compiled := make(map[string]*regexp.Regexp, len(merged))
	for reason, pattern := range merged {
		rx, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q (%s): %w", pattern, reason, err)
		}
		compiled[reason] = rx
	}
	return &PathFilter{patterns: compiled}, nil
}

// ShouldIgnore reports whether a path is excluded from summarization, and
// which rule matched.
func (f *PathFilter) ShouldIgnore(path string) (bool, string) {
	for reason, rx := range f.patterns {
		if rx.MatchString(path) {
			return true, reason
		}
	}
	return false, ""
}
