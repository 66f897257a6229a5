package client

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// RegisterCmd creates the register command.
func RegisterCmd() *cobra.Command {
	var req RegisterRequest
	var remote, sync bool

	cmd := &cobra.Command{
		Use:   "register <locator>",
		Short: "Register a stored resource",
		Long:  "Registers a file that is already stored (local path or object key) and optionally starts processing it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Locator = args[0]
			if req.Type == "" {
				req.Type = strings.TrimPrefix(filepath.Ext(req.Locator), ".")
			}
			if remote {
				req.StorageKind = "remote"
			}
			if sync {
				req.Process = true
				req.Mode = "SYNC"
			}
			return runRegister(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.CourseID, "course", "", "Owning course id (required)")
	cmd.Flags().StringVar(&req.ModuleID, "module", "", "Module id")
	cmd.Flags().StringVar(&req.Title, "title", "", "Display title (defaults to the locator)")
	cmd.Flags().StringVarP(&req.Type, "type", "t", "", "Resource type: video, pdf, docx or txt (defaults to the file extension)")
	cmd.Flags().StringVar(&req.ID, "id", "", "Resource id (generated when empty)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Locator is an object storage key")
	cmd.Flags().BoolVar(&req.Process, "process", false, "Queue processing right after registration")
	cmd.Flags().BoolVar(&sync, "sync", false, "Process inline and wait for the result")
	_ = cmd.MarkFlagRequired("course")

	return cmd
}

func runRegister(cmd *cobra.Command, req RegisterRequest) error {
	api := NewAPIClientWithCmd(cmd)

	resp, err := api.Post("/resources", req)
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	var out RegisterResponse
	if err := resp.Decode(&out); err != nil {
		return err
	}

	return render(cmd, out, func(w io.Writer) {
		fmt.Fprintf(w, "Registered %s (%s) as %s\n", out.Resource.ID, out.Resource.Type, out.Resource.Status)
		if out.Dispatch != nil {
			printDispatch(w, out.Dispatch)
		}
	})
}

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var courseID, moduleID, title string
	var process, sync bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file to object storage and register it",
		Long:  "Requests a presigned URL, uploads the file and registers it as a remote resource.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			api := NewAPIClientWithCmd(cmd)

			contentType := mime.TypeByExtension(filepath.Ext(path))
			resp, err := api.Post("/uploads", map[string]string{
				"course_id":    courseID,
				"filename":     filepath.Base(path),
				"content_type": contentType,
			})
			if err != nil {
				return fmt.Errorf("upload init failed: %w", err)
			}
			var ticket UploadTicket
			if err := resp.Decode(&ticket); err != nil {
				return err
			}
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			errOut := cmd.ErrOrStderr()
			err = api.UploadFile(ticket.UploadURL, path, contentType, func(current, total int64) {
				if total > 0 {
					fmt.Fprintf(errOut, "\rUploading %s: %3d%%", filepath.Base(path), current*100/total)
				}
			})
			fmt.Fprintln(errOut)
			if err != nil {
				return err
			}

			if title == "" {
				title = filepath.Base(path)
			}
			req := RegisterRequest{
				ID:          ticket.ResourceID,
				CourseID:    courseID,
				ModuleID:    moduleID,
				Title:       title,
				Type:        ticket.Type,
				Locator:     ticket.StorageKey,
				StorageKind: ticket.StorageKind,
				Process:     process || sync,
			}
			if sync {
				req.Mode = "SYNC"
			}
			return runRegister(cmd, req)
		},
	}

	cmd.Flags().StringVar(&courseID, "course", "", "Owning course id (required)")
	cmd.Flags().StringVar(&moduleID, "module", "", "Module id")
	cmd.Flags().StringVar(&title, "title", "", "Display title (defaults to the file name)")
	cmd.Flags().BoolVar(&process, "process", true, "Queue processing after the upload")
	cmd.Flags().BoolVar(&sync, "sync", false, "Process inline and wait for the result")
	_ = cmd.MarkFlagRequired("course")

	return cmd
}

// ProcessCmd creates the process command.
func ProcessCmd() *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "process <resource-id>",
		Short: "Start a processing attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := "QUEUED"
			if sync {
				mode = "SYNC"
			}

			resp, err := NewAPIClientWithCmd(cmd).Post(resourcePath(args[0], "process"), map[string]string{"mode": mode})
			if err != nil {
				return fmt.Errorf("process failed: %w", err)
			}
			var d Dispatch
			if err := resp.Decode(&d); err != nil {
				return err
			}
			return render(cmd, d, func(w io.Writer) { printDispatch(w, &d) })
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Process inline and wait for the result")

	return cmd
}

// ReindexCmd creates the reindex command.
func ReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <resource-id>",
		Short: "Rebuild embeddings from the stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Post(resourcePath(args[0], "reindex"), nil)
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			var out Outcome
			if err := resp.Decode(&out); err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s (%d chunks indexed)\n", out.ResourceID, out.Status, out.ChunksIndexed)
				if out.Error != "" {
					fmt.Fprintf(w, "Error: %s\n", out.Error)
				}
			})
		},
	}
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status <resource-id>",
		Short: "Show processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := NewAPIClientWithCmd(cmd)
			for {
				resp, err := api.Get(resourcePath(args[0], "status"))
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
				var s Status
				if err := resp.Decode(&s); err != nil {
					return err
				}
				if err := render(cmd, s, func(w io.Writer) { printStatus(w, s) }); err != nil {
					return err
				}
				if !watch || s.IsTerminal() {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the resource is COMPLETE or FAILED")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --watch")

	return cmd
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "list <course-id>",
		Short: "List a course's resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			resp, err := NewAPIClientWithCmd(cmd).Get("/courses/" + url.PathEscape(args[0]) + "/resources?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			var list ResourceList
			if err := resp.Decode(&list); err != nil {
				return err
			}

			return render(cmd, list, func(w io.Writer) {
				if len(list.Items) == 0 {
					fmt.Fprintln(w, "No resources found.")
					return
				}
				for _, r := range list.Items {
					fmt.Fprintf(w, "%-36s  %-5s  %-10s  %s\n", r.ID, r.Type, r.Status, r.Title)
				}
				if list.HasMore && list.Cursor != "" {
					fmt.Fprintf(w, "\nMore resources available. Use --cursor %s\n", list.Cursor)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of resources")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource-id>",
		Short: "Delete a resource with its transcript and embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := NewAPIClientWithCmd(cmd).Delete(resourcePath(args[0], "")); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func resourcePath(id, action string) string {
	p := "/resources/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func printDispatch(w io.Writer, d *Dispatch) {
	fmt.Fprintf(w, "Attempt %s (%s): %s\n", d.AttemptID, d.Mode, d.Status)
	if d.Outcome != nil && d.Status == "COMPLETE" {
		fmt.Fprintf(w, "Words: %d, chunks indexed: %d, confidence: %.2f\n",
			d.Outcome.WordCount, d.Outcome.ChunksIndexed, d.Outcome.Confidence)
	}
	if d.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", d.Error)
	}
}

func printStatus(w io.Writer, s Status) {
	switch {
	case s.Progress != nil && s.CurrentStep != nil:
		eta := 0
		if s.EstimatedTimeRemaining != nil {
			eta = *s.EstimatedTimeRemaining
		}
		fmt.Fprintf(w, "%s: %s %d%% %s (~%ds left)\n", s.ResourceID, s.Status, *s.Progress, *s.CurrentStep, eta)
	case s.Error != nil:
		fmt.Fprintf(w, "%s: %s: %s\n", s.ResourceID, s.Status, *s.Error)
	default:
		fmt.Fprintf(w, "%s: %s\n", s.ResourceID, s.Status)
	}
}

// render prints v as JSON when --output is set, otherwise calls text.
func render(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	text(w)
	return nil
}
