package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/kbconsole/internal/console"
)

func deleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete entries by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			for _, id := range args {
				if err := client.Delete(cmd.Context(), id); err != nil {
					msg := console.MapError(err)
					return fmt.Errorf("delete %s: %s (%s): %w", id, msg.Message, msg.Code, err)
				}
				green.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func saveCmd(opts *options) *cobra.Command {
	var (
		req      console.SaveRequest
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update an entry",
		Example: `  kbctl save --question "How do refunds work?" --answer "See policy." --tags billing,refunds
  kbctl save --id 2024-01-01-001 --question Q --answer A --file guide.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := req.Validate(); err != nil {
				return err
			}
			if filePath != "" {
				data, err := os.ReadFile(filePath)
				if err != nil {
					return fmt.Errorf("read attachment: %w", err)
				}
				req.File = &console.Attachment{Filename: filepath.Base(filePath), Data: data}
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			if err := client.Save(cmd.Context(), req); err != nil {
				return err
			}

			label := req.ID
			if label == "" {
				label = "new entry"
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "saved %s\n", label)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "entry id (empty creates a new entry)")
	cmd.Flags().StringVar(&req.Question, "question", "", "question text (required)")
	cmd.Flags().StringVar(&req.Answer, "answer", "", "answer text (required)")
	cmd.Flags().StringVar(&req.Tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "internal notes")
	cmd.Flags().StringVar(&filePath, "file", "", "attachment to upload")
	return cmd
}
