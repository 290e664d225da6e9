package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"markexpr/internal/models"
	"markexpr/internal/runner"
)

var scanCmd = &cobra.Command{
	Use:   "scan [PATH...]",
	Short: "Annotate every JavaScript and TypeScript file under the given paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		write, _ := cmd.Flags().GetBool("write")
		outDir, _ := cmd.Flags().GetString("out-dir")
		workers, _ := cmd.Flags().GetInt("workers")
		incremental, _ := cmd.Flags().GetBool("incremental")
		reset, _ := cmd.Flags().GetBool("reset")

		if len(args) == 0 {
			args = []string{"."}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if reset {
			if err := runner.ClearState(args...); err != nil {
				return fmt.Errorf("failed to clear state: %w", err)
			}
		}

		r, err := runner.New(cfg, runner.Options{
			Workers:     workers,
			Write:       write,
			OutDir:      outDir,
			Incremental: incremental,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		reports, err := r.Run(cmd.Context(), args)
		if err != nil {
			return err
		}
		summary := models.Summarize(reports)

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(models.RunReport{Summary: summary, Files: reports}); err != nil {
				return err
			}
		} else {
			for _, rep := range reports {
				switch {
				case rep.Failed():
					fmt.Fprintf(out, "✗ %s: %s\n", rep.Path, rep.Error)
				case rep.Skipped:
					fmt.Fprintf(out, "- %s (unchanged)\n", rep.Path)
				case rep.Annotated:
					fmt.Fprintf(out, "✓ %s (%d records)\n", rep.Path, len(rep.Records))
				}
			}
			fmt.Fprintf(out, "%d files, %d annotated, %d records, %d skipped, %d failed\n",
				summary.Files, summary.Annotated, summary.Records, summary.Skipped, summary.Failed)
		}

		if summary.Failed > 0 {
			return fmt.Errorf("%d files failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().Bool("json", false, "Print the report as JSON")
	scanCmd.Flags().BoolP("write", "w", false, "Rewrite annotated files in place")
	scanCmd.Flags().String("out-dir", "", "Write every processed file below this directory")
	scanCmd.Flags().Int("workers", 0, "Files processed concurrently (default: number of CPUs)")
	scanCmd.Flags().Bool("incremental", false, "Skip files unchanged since the last --write/--out-dir run")
	scanCmd.Flags().Bool("reset", false, "Forget the incremental state before running")
	scanCmd.MarkFlagsMutuallyExclusive("write", "out-dir")

	rootCmd.AddCommand(scanCmd)
}
