package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/spf13/cobra"
)

// ProcessCmd returns the process command
func ProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <resource-id>",
		Short: "Start processing a registered resource",
		Long:  "Begin a new processing attempt. Without --sync the task is queued on the broker.",
		Args:  cobra.ExactArgs(1),
		RunE:  runProcess,
	}

	cmd.Flags().Bool("sync", false, "Run the pipeline in this process and wait for the result")
	cmd.Flags().Bool("reindex", false, "Rebuild embeddings from the stored transcript without extracting again")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	resourceID := args[0]
	sync, _ := cmd.Flags().GetBool("sync")
	reindex, _ := cmd.Flags().GetBool("reindex")
	outputFormat, _ := cmd.Flags().GetString("output")

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if reindex {
		out, err := app.Orchestrator.Reindex(ctx, resourceID)
		if out.AttemptID == "" && err != nil {
			return fmt.Errorf("failed to reindex resource: %w", err)
		}
		return printResult(outputFormat, out, func() {
			fmt.Printf("Reindex %s: %s (%d chunks)\n", resourceID, out.Status, out.ChunksIndexed)
			if out.Error != "" {
				fmt.Printf("Error: %s\n", out.Error)
			}
		})
	}

	resource, err := app.Resources.Get(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to load resource: %w", err)
	}

	mode := domain.DispatchModeQueued
	if sync {
		mode = domain.DispatchModeSync
	}

	result, err := app.Dispatcher.StartProcessing(ctx, service.StartRequest{
		ResourceID:  resource.ID,
		Locator:     resource.Locator,
		StorageKind: resource.StorageKind,
		Type:        resource.Type,
		Mode:        mode,
	})
	if result == nil {
		return fmt.Errorf("failed to start processing: %w", err)
	}

	return printResult(outputFormat, result, func() {
		fmt.Printf("Resource %s: %s (attempt %s, %s)\n", result.ResourceID, result.Status, result.AttemptID, result.Mode)
		if result.Outcome != nil && result.Status == domain.ResourceStatusComplete {
			fmt.Printf("Words: %d, chunks indexed: %d, confidence: %.2f\n",
				result.Outcome.WordCount, result.Outcome.ChunksIndexed, result.Outcome.Confidence)
		}
		if result.Error != "" {
			fmt.Printf("Error: %s\n", result.Error)
		}
	})
}

func printResult(format string, v interface{}, text func()) error {
	if format == "json" {
		jsonBytes, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(jsonBytes))
		return nil
	}
	text()
	return nil
}
