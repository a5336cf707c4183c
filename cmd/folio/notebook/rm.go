package notebookcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/cliui"
	"github.com/quillworksco/folio/pkg/config"
)

const rmLongDesc string = `Remove a notebook.

Deletes the notebook, all of its sources, and its vector collection.
This cannot be undone.

Examples:
  folio notebook rm 6f1c9a04-...`

const rmShortDesc string = "Remove a notebook and its index"

func newRmCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: rmShortDesc,
		Long:  rmLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveAPITarget(cmd)
			if err != nil {
				return err
			}
			return runRm(cmd.Context(), target, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func runRm(ctx context.Context, apiTarget, notebookID string) error {
	client, err := apiclient.New(apiTarget)
	if err != nil {
		return err
	}

	if err := client.DeleteNotebook(ctx, notebookID); err != nil {
		return err
	}

	fmt.Printf("\n  %s Removed notebook %s\n\n", cliui.SuccessMark, idStyle.Render(notebookID))
	return nil
}
