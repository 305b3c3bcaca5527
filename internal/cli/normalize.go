package cli

import (
	"fmt"
	"os"
	"strings"

	"dfl-stack/shared/planparser"

	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var (
		source  string
		prompts bool
	)

	cmd := &cobra.Command{
		Use:   "normalize <response>",
		Short: "Extract and normalize a planner response into a plan",
		Long: `normalize reads a planner response, which may be raw JSON or model text
with code fences and stray prose, and prints the normalized plan. Items
that cannot be executed are reported on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			extracted := planparser.ExtractJSON(string(data))
			if !extracted.Success {
				return fmt.Errorf("no plan JSON found: %s", extracted.Error)
			}

			res := planparser.New(source).Parse(extracted.Data)
			if !res.Success {
				return fmt.Errorf("failed to normalize plan: %s", res.Error)
			}

			stderr := cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "%s %d items (extracted via %s)\n", theme.Info("•"), res.Plan.ItemCount, extracted.Method)
			for _, item := range res.Plan.Schedule {
				v := planparser.ValidateForExecution(item)
				if v.Valid {
					fmt.Fprintf(stderr, "  %s %s\n", theme.Success(symbolSuccess), item.Title)
					continue
				}
				fmt.Fprintf(stderr, "  %s %s: %s\n", theme.Error(symbolError), item.Title, strings.Join(v.Issues, "; "))
			}

			if prompts {
				out := cmd.OutOrStdout()
				for _, item := range res.Plan.Schedule {
					fmt.Fprintf(out, "%s\n%s\n\n", theme.Bold(item.Title), planparser.ExecutionPrompt(item))
				}
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), res.Plan)
		},
	}

	cmd.Flags().StringVar(&source, "source", planparser.DefaultSource, "source recorded on the plan")
	cmd.Flags().BoolVar(&prompts, "prompts", false, "print execution prompts instead of the plan")
	return cmd
}
