// cmd/server/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd 构建 cinema 命令；不带子命令时启动 Web 服务
func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:   "cinema",
		Short: "Coffee with Cinema turns a story idea into a screenplay, character profiles and a sound design plan",
		Long: `Coffee with Cinema sends your story idea to a local Ollama model three times
and returns a screenplay, character profiles and a sound design plan that can be
downloaded as plain text, PDF or DOCX.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPaths(configDir))
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing config.yaml")

	root.AddCommand(newServeCmd(&configDir))
	root.AddCommand(newGenerateCmd(&configDir))
	return root
}

func configPaths(dir string) []string {
	if dir == "" {
		return nil
	}
	return []string{dir}
}
