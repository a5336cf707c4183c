package sourcecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/config"
	"github.com/quillworksco/folio/pkg/utils"
)

const listLongDesc string = `List a notebook's sources.

Displays every non-deleted source attached to the notebook with its ID,
title, and a preview of its text.

Examples:
  folio source list 6f1c9a04-...`

const listShortDesc string = "List a notebook's sources"

func newListCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "list <notebook>",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveAPITarget(cmd)
			if err != nil {
				return err
			}
			return runList(cmd.Context(), target, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func runList(ctx context.Context, apiTarget, notebookID string) error {
	client, err := apiclient.New(apiTarget)
	if err != nil {
		return err
	}

	out, err := client.ListSources(ctx, notebookID)
	if err != nil {
		return err
	}

	if out.Count == 0 {
		fmt.Println("No sources found.")
		return nil
	}

	fmt.Printf("\n%s\n\n", headerStyle.Render(fmt.Sprintf("Sources (%d)", out.Count)))
	for _, src := range out.Sources {
		title := src.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %s  %s\n", idStyle.Render(src.ID), titleStyle.Render(title))
		fmt.Printf("      %s\n", dimStyle.Render(utils.Truncate(src.ExtractedText, 80)))
	}
	fmt.Println()

	return nil
}
