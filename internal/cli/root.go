package cli

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command. They are read once
// and folded into a config.Config before anything runs.
type rootOptions struct {
	configPath string
	logPath    string
	backend    string
	verbose    bool
	noResults  bool

	shadowPassing bool
	libcPassing   bool
	summarize     bool
	pattern       string
}

// NewRoot builds the command tree. Running the root command with no
// subcommand runs the suite.
func NewRoot() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pipecheck",
		Short: "pipecheck - conformance suite for pipe syscalls",
		Long: `pipecheck runs a fixed set of pipe scenarios (pipe, pipe2, read, write,
dup, close) against a syscall backend and reports every divergence from
standard pipe semantics.

Backends:
  libc    the C library, loaded at runtime (Libc environment)
  kernel  raw syscalls without libc (Libc environment)
  shadow  the in-process pipe simulator (Shadow environment)

Examples:
  pipecheck                                 # run every case against libc
  pipecheck --backend shadow --shadow-passing
  pipecheck --summarize --run 'dup|large'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to config YAML file (default: ~/.pipecheck/config.yaml)")
	pf.StringVar(&opts.logPath, "log", "", "Path to results log file (default: ~/.pipecheck/results.jsonl)")
	pf.StringVar(&opts.backend, "backend", "", "Syscall backend: libc, kernel or shadow (default: libc)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every partial read and write")
	pf.BoolVar(&opts.shadowPassing, "shadow-passing", false, "Only run cases expected to pass under Shadow")
	pf.BoolVar(&opts.libcPassing, "libc-passing", false, "Only run cases expected to pass under Libc")
	pf.StringVar(&opts.pattern, "run", "", "Only run cases whose name matches this regular expression")

	rootCmd.Flags().BoolVar(&opts.summarize, "summarize", false, "Run every case and summarize failures instead of stopping at the first")
	rootCmd.Flags().BoolVar(&opts.noResults, "no-results", false, "Do not append results to the results log")

	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newLogCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func Execute() error {
	return NewRoot().Execute()
}
