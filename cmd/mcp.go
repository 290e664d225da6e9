package cmd

import (
	"github.com/spf13/cobra"

	"markexpr/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		server, err := mcp.NewServer(cfg, Version, logger)
		if err != nil {
			return err
		}
		logger.Debug("mcp server listening on stdio")
		return server.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
