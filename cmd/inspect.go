package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"markexpr/internal/marker"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "Print the records stored in annotated files",
	Long:  "Decode the annotations of already annotated files, for example a bundle built from annotated modules.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var all []marker.Record
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			records, err := marker.ParseAnnotations(string(data), cfg.Title)
			if errors.Is(err, marker.ErrNoAnnotation) {
				logger.Info("no annotation", zap.String("path", path), zap.String("title", cfg.Title))
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			all = append(all, records...)
		}

		body, err := marker.EncodeRecords(all, cfg.RecordFormat(), true)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return err
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
