package suite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/sys"
)

func TestAllTestCases_Native(t *testing.T) {
	for _, name := range []string{sys.BackendKernel, sys.BackendLibc} {
		t.Run(name, func(t *testing.T) {
			b, err := sys.Open(name)
			if err != nil {
				t.Skipf("backend unavailable: %v", err)
			}

			for _, tc := range AllTestCases() {
				if !tc.Passing(env.Libc) {
					continue
				}
				t.Run(tc.Name, func(t *testing.T) {
					require.NoError(t, tc.Run(&Fixture{Sys: b, Options: DefaultOptions()}))
				})
			}
		})
	}
}
