package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/lessonindex/internal/cli"
	"github.com/cloo-solutions/lessonindex/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lessonindexd",
		Short: "LessonIndex daemon and admin CLI",
		Long:  "LessonIndex daemon for running the API server and queue workers, and for processing or searching resources directly",
		Annotations: map[string]string{
			cli.EnvAnnotation: "LESSONINDEX_DATABASE_URL,LESSONINDEX_REDIS_URL,LESSONINDEX_S3_ENDPOINT,LESSONINDEX_OPENAI_API_KEY,LESSONINDEX_SENTRY_DSN",
		},
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.WorkerCmd())
	rootCmd.AddCommand(admin.ProcessCmd())
	rootCmd.AddCommand(admin.SearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
