package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"markexpr/internal/runner"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate FILE",
	Short: "Annotate one file and print the result",
	Long:  "Annotate one file. Use - to read from stdin, with --filename naming the file for positions and language detection.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		write, _ := cmd.Flags().GetBool("write")
		filename, _ := cmd.Flags().GetString("filename")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := args[0]
		var src []byte
		if path == "-" {
			if filename == "" {
				return fmt.Errorf("--filename is required when reading stdin")
			}
			if write {
				return fmt.Errorf("--write cannot be used with stdin")
			}
			src, err = io.ReadAll(cmd.InOrStdin())
			path = filename
		} else {
			src, err = os.ReadFile(path)
		}
		if err != nil {
			return err
		}

		r, err := runner.New(cfg, runner.Options{Logger: logger})
		if err != nil {
			return err
		}
		records, out, err := r.Annotate(cmd.Context(), path, src)
		if err != nil {
			return err
		}
		logger.Debug("annotated", zap.String("path", path), zap.Int("records", len(records)))

		switch {
		case write:
			if len(records) == 0 {
				return nil
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			return os.WriteFile(path, out, info.Mode().Perm())
		case output != "":
			return os.WriteFile(output, out, 0o644)
		default:
			_, err := cmd.OutOrStdout().Write(out)
			return err
		}
	},
}

func init() {
	annotateCmd.Flags().StringP("output", "o", "", "Write the result to this file instead of stdout")
	annotateCmd.Flags().BoolP("write", "w", false, "Rewrite the file in place when it has matches")
	annotateCmd.Flags().String("filename", "", "File name used for stdin input")
	annotateCmd.MarkFlagsMutuallyExclusive("output", "write")

	rootCmd.AddCommand(annotateCmd)
}
