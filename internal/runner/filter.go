package runner

import (
	"fmt"
	"regexp"

	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/suite"
)

// Filter narrows the registry. Every enabled condition must hold, so the
// two environment flags together select the intersection.
type Filter struct {
	ShadowPassing bool
	LibcPassing   bool
	// Pattern, when non-empty, is a regular expression the case name must
	// match.
	Pattern string
}

// Apply returns the cases that satisfy f, in their original order.
func (f Filter) Apply(cases []suite.TestCase) ([]suite.TestCase, error) {
	var re *regexp.Regexp
	if f.Pattern != "" {
		var err error
		re, err = regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid --run pattern: %w", err)
		}
	}

	out := make([]suite.TestCase, 0, len(cases))
	for _, tc := range cases {
		if f.ShadowPassing && !tc.Passing(env.Shadow) {
			continue
		}
		if f.LibcPassing && !tc.Passing(env.Libc) {
			continue
		}
		if re != nil && !re.MatchString(tc.Name) {
			continue
		}
		out = append(out, tc)
	}
	return out, nil
}
