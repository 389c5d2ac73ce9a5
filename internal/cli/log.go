package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/pipecheck/internal/env"
	"github.com/gzhole/pipecheck/internal/logger"
	"github.com/gzhole/pipecheck/internal/suite"
)

type logOptions struct {
	result  string
	test    string
	backend string
	env     string
	last    int
	summary bool
}

func newLogCmd(root *rootOptions) *cobra.Command {
	opts := &logOptions{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "View and filter the results log",
		Long: `View the pipecheck results log with filtering and summary options.

Examples:
  pipecheck log                        # Show all entries
  pipecheck log --last 20              # Show last 20 entries
  pipecheck log --result FAIL          # Show only failures
  pipecheck log --backend shadow       # Show only simulator runs
  pipecheck log --env libc             # Show runs in the libc environment
  pipecheck log --summary              # Show per-case pass/fail counts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			opts.backend = root.backend
			if opts.env != "" {
				e, err := env.Parse(opts.env)
				if err != nil {
					return err
				}
				opts.env = e.String()
			}
			if opts.test != "" {
				if _, ok := suite.Lookup(opts.test); !ok {
					return fmt.Errorf("unknown test %q (see pipecheck list)", opts.test)
				}
			}

			events, err := logger.ReadAll(cfg.LogPath)
			if err != nil {
				return fmt.Errorf("failed to read results log: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No results log entries found.")
				return nil
			}

			filtered := filterEvents(events, opts)
			if opts.last > 0 && opts.last < len(filtered) {
				filtered = filtered[len(filtered)-opts.last:]
			}

			if opts.summary {
				printSummary(out, filtered)
				return nil
			}
			printEvents(out, filtered, useIcons(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.result, "result", "", "Filter by result (PASS, FAIL)")
	cmd.Flags().StringVar(&opts.test, "test", "", "Filter by case name")
	cmd.Flags().StringVar(&opts.env, "env", "", "Filter by environment (libc, shadow)")
	cmd.Flags().IntVar(&opts.last, "last", 0, "Show last N entries")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Show summary statistics")
	return cmd
}

func filterEvents(events []logger.ResultEvent, opts *logOptions) []logger.ResultEvent {
	if opts.result == "" && opts.test == "" && opts.backend == "" && opts.env == "" {
		return events
	}

	var filtered []logger.ResultEvent
	for _, e := range events {
		if opts.result != "" && !strings.EqualFold(e.Result, opts.result) {
			continue
		}
		if opts.test != "" && e.Test != opts.test {
			continue
		}
		if opts.backend != "" && !strings.EqualFold(e.Backend, opts.backend) {
			continue
		}
		if opts.env != "" && e.Env != opts.env {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func printEvents(w io.Writer, events []logger.ResultEvent, icons bool) {
	for _, e := range events {
		fmt.Fprintf(w, "%s %s %s [%s]\n", statusIcon(e.Result, icons), formatTimestamp(e.Timestamp), e.Test, e.Backend)
		if e.Error != "" {
			fmt.Fprintf(w, "     Error: %s\n", e.Error)
		}
		fmt.Fprintf(w, "     Run: %s  Expected: %s\n", e.RunID, e.Expected)
	}
}

func printSummary(w io.Writer, events []logger.ResultEvent) {
	type tally struct{ pass, fail int }
	var order []string
	byTest := map[string]*tally{}
	runs := map[string]bool{}

	for _, e := range events {
		runs[e.RunID] = true
		t, ok := byTest[e.Test]
		if !ok {
			t = &tally{}
			byTest[e.Test] = t
			order = append(order, e.Test)
		}
		if e.Result == "PASS" {
			t.pass++
		} else {
			t.fail++
		}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  pipecheck Results Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Runs:     %d\n", len(runs))
	fmt.Fprintf(w, "  Results:  %d\n", len(events))
	if len(events) > 0 {
		fmt.Fprintf(w, "  First:    %s\n", formatTimestamp(events[0].Timestamp))
		fmt.Fprintf(w, "  Last:     %s\n", formatTimestamp(events[len(events)-1].Timestamp))
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	for _, name := range order {
		t := byTest[name]
		fmt.Fprintf(w, "  %-34s %3d pass  %3d fail\n", name, t.pass, t.fail)
	}
	fmt.Fprintln(w)
}
