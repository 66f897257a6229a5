package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var req SearchRequest
	var resourceIDs []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed lessons",
		Long:  "Searches transcripts and documents by semantic similarity.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = strings.Join(args, " ")
			if len(resourceIDs) == 1 {
				req.ResourceID = resourceIDs[0]
			} else {
				req.ResourceIDs = resourceIDs
			}

			resp, err := NewAPIClientWithCmd(cmd).Post("/search", req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			var out SearchResponse
			if err := resp.Decode(&out); err != nil {
				return err
			}

			return render(cmd, out, func(w io.Writer) {
				if len(out.Results) == 0 {
					fmt.Fprintln(w, "No results found.")
					return
				}

				fmt.Fprintf(w, "Found %d results:\n\n", out.Count)
				for i, r := range out.Results {
					fmt.Fprintf(w, "%d. %s#%d (%.2f)", i+1, r.Metadata.ResourceID, r.Metadata.ChunkIndex, r.Score)
					if r.Metadata.StartSeconds != nil {
						fmt.Fprintf(w, " at %s", formatTimestamp(*r.Metadata.StartSeconds))
					}
					fmt.Fprintln(w)

					content := strings.Join(strings.Fields(r.Content), " ")
					if len(content) > 160 {
						content = content[:157] + "..."
					}
					fmt.Fprintf(w, "   %s\n", content)
					if i < len(out.Results)-1 {
						fmt.Fprintln(w, strings.Repeat("-", 40))
					}
				}
			})
		},
	}

	cmd.Flags().IntVarP(&req.TopK, "top-k", "k", 5, "Maximum number of results")
	cmd.Flags().StringVar(&req.ModuleID, "module", "", "Restrict to a module id")
	cmd.Flags().StringSliceVar(&resourceIDs, "resource", nil, "Restrict to resource ids (repeatable)")

	return cmd
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
