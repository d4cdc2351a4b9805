package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// RegexRule is one user-defined detection rule. Target and Display are
// templates expanded against capture groups using ${n} placeholders; an empty
// Display falls back to the matched text.
type RegexRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Flags   string `yaml:"flags" json:"flags"`
	Target  string `yaml:"target" json:"target"`
	Display string `yaml:"display" json:"display"`
}

type compiledRule struct {
	re      *regexp.Regexp
	target  string
	display string
}

// Regexes detects spans matching user-defined rules. All patterns compile at
// construction; a bad rule fails the whole set so misconfiguration surfaces
// immediately instead of silently dropping rules.
type Regexes struct {
	rules []compiledRule
}

// NewRegexes compiles the given rules. Supported flags: i (case-insensitive),
// m (multi-line anchors), s (dot matches newline).
func NewRegexes(rules []RegexRule) (*Regexes, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		prefix, err := flagPrefix(rule.Flags)
		if err != nil {
			return nil, fmt.Errorf("detect: rule %q: %w", rule.Pattern, err)
		}
		re, err := regexp.Compile(prefix + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("detect: rule %q: %w: %v", rule.Pattern, apperr.ErrInvalidRule, err)
		}
		compiled = append(compiled, compiledRule{re: re, target: rule.Target, display: rule.Display})
	}
	return &Regexes{rules: compiled}, nil
}

func flagPrefix(flags string) (string, error) {
	if flags == "" {
		return "", nil
	}
	for _, f := range flags {
		if !strings.ContainsRune("ims", f) {
			return "", fmt.Errorf("%w: unsupported flag %q", apperr.ErrInvalidRule, string(f))
		}
	}
	return "(?" + flags + ")", nil
}

// Detect runs every rule against text and returns all raw matches. Rules are
// applied independently; overlap between rules is resolved by the caller.
func (r *Regexes) Detect(_ string, text string) []Detection {
	var out []Detection
	for _, rule := range r.rules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			display := string(rule.re.ExpandString(nil, rule.display, text, m))
			if rule.display == "" {
				display = text[m[0]:m[1]]
			}
			out = append(out, Detection{
				Start:   m[0],
				End:     m[1],
				Display: display,
				Target:  string(rule.re.ExpandString(nil, rule.target, text, m)),
				Source:  SourceRegex,
			})
		}
	}
	return out
}
