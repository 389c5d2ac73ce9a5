package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/pipecheck/internal/suite"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered cases and the environments they must pass under",
		Long: `List every case in registration order. The --shadow-passing,
--libc-passing and --run filters apply exactly as they do for a run.

  pipecheck list
  pipecheck list --shadow-passing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			cases, err := filterFor(cfg).Apply(suite.AllTestCases())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, tc := range cases {
				fmt.Fprintf(out, "%-34s %s\n", tc.Name, tc.Envs)
			}
			fmt.Fprintf(out, "\n%d case(s)\n", len(cases))
			return nil
		},
	}
}
