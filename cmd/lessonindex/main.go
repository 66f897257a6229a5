package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/lessonindex/internal/cli"
	"github.com/cloo-solutions/lessonindex/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lessonindex",
		Short: "LessonIndex CLI - Course media indexing and search",
		Long: `LessonIndex CLI registers course media, tracks processing and searches indexed lessons.

Environment variables:
  LESSONINDEX_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		Annotations:   map[string]string{cli.EnvAnnotation: "LESSONINDEX_API_URL"},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.RegisterCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ProcessCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.ReindexCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.SearchCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
