package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// Failure reasons reported per entry line
const (
	ReasonInvalidFormat  = "invalid format"
	ReasonNotRegistered  = "not registered"
	ReasonAlreadyEntered = "already entered"
)

// Batch is the parsed form of a pasted entry block
type Batch struct {
	Lines    []string
	Rejected bool
}

// Validator checks the shape of transaction identifiers
type Validator struct {
	maxLines int
	pattern  *regexp.Regexp
}

// NewValidator creates a validator accepting 12 digit identifiers that start
// with one of prefixes. Batches longer than maxLines are rejected whole.
func NewValidator(maxLines int, prefixes []string) (*Validator, error) {
	if maxLines <= 0 {
		return nil, fmt.Errorf("max lines must be positive, got %d", maxLines)
	}
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("at least one identifier prefix is required")
	}

	alternatives := make([]string, 0, len(prefixes))
	width := len(prefixes[0])
	for _, p := range prefixes {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return nil, fmt.Errorf("identifier prefix %q must be digits", p)
		}
		if len(p) != width {
			return nil, fmt.Errorf("identifier prefixes must share one length, got %q and %q", prefixes[0], p)
		}
		alternatives = append(alternatives, regexp.QuoteMeta(p))
	}

	pattern, err := regexp.Compile(fmt.Sprintf(`^(%s)\d{%d}$`, strings.Join(alternatives, "|"), 12-width))
	if err != nil {
		return nil, fmt.Errorf("failed to compile identifier pattern: %w", err)
	}

	return &Validator{maxLines: maxLines, pattern: pattern}, nil
}

// MaxLines returns the batch size limit
func (v *Validator) MaxLines() int {
	return v.maxLines
}

// ParseLines splits text into trimmed non-empty lines and applies the batch
// size limit.
func (v *Validator) ParseLines(text string) Batch {
	lines := make([]string, 0)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return Batch{Lines: lines, Rejected: len(lines) > v.maxLines}
}

// CheckFormat reports whether id is a well-formed transaction identifier
func (v *Validator) CheckFormat(id string) bool {
	return v.pattern.MatchString(id)
}
