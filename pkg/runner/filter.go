package runner

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter selects test cases by glob patterns over "Class.Method".
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles include and exclude patterns. '.' is a separator, so
// "LoginTest.*" matches every method of LoginTest and nothing deeper.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}

	for _, pattern := range include {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		f.include = append(f.include, g)
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}

	return f, nil
}

// Match reports whether a test named "Class.Method" is selected.
func (f *Filter) Match(name string) bool {
	// Excludes take precedence
	for _, pattern := range f.exclude {
		if pattern.Match(name) {
			return false
		}
	}

	// No includes selects everything not excluded
	if len(f.include) == 0 {
		return true
	}

	for _, pattern := range f.include {
		if pattern.Match(name) {
			return true
		}
	}

	return false
}

// Apply returns the selected cases in their original order.
func (f *Filter) Apply(cases []TestCase) []TestCase {
	selected := make([]TestCase, 0, len(cases))
	for _, tc := range cases {
		if f.Match(tc.Name()) {
			selected = append(selected, tc)
		}
	}
	return selected
}
