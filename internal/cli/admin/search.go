package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/spf13/cobra"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the lesson index",
		Long:  "Embed a query and print the most similar indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("top-k", "k", 5, "Number of results")
	cmd.Flags().String("module", "", "Restrict to a module id")
	cmd.Flags().StringSlice("resource", nil, "Restrict to resource ids (repeatable)")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")
	topK, _ := cmd.Flags().GetInt("top-k")
	moduleID, _ := cmd.Flags().GetString("module")
	resourceIDs, _ := cmd.Flags().GetStringSlice("resource")
	outputFormat, _ := cmd.Flags().GetString("output")

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.Retriever.Search(ctx, query, topK, searchScope(moduleID, resourceIDs))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return printResult(outputFormat, results, func() {
		if len(results) == 0 {
			fmt.Println("No results")
			return
		}
		for i, r := range results {
			fmt.Printf("%d. [%.3f] %s#%d", i+1, r.Score, r.Metadata.ResourceID, r.Metadata.ChunkIndex)
			if r.Metadata.StartSeconds != nil {
				fmt.Printf(" @%.1fs", *r.Metadata.StartSeconds)
			}
			fmt.Printf("\n   %s\n", truncate(r.Content, 200))
		}
	})
}

// searchScope pushes a single resource id down as equality and keeps
// several as a membership set.
func searchScope(moduleID string, resourceIDs []string) *service.Scope {
	if moduleID == "" && len(resourceIDs) == 0 {
		return nil
	}
	scope := &service.Scope{Equals: domain.MetadataFilter{ModuleID: moduleID}}
	if len(resourceIDs) == 1 {
		scope.Equals.ResourceID = resourceIDs[0]
	} else {
		scope.ResourceIDs = resourceIDs
	}
	return scope
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
