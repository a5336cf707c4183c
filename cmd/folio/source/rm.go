package sourcecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/cliui"
	"github.com/quillworksco/folio/pkg/config"
)

const rmLongDesc string = `Remove a source from a notebook.

Soft-deletes the source and purges its chunks from the notebook's vector
collection. Answers will no longer cite it.

Examples:
  folio source rm 6f1c9a04-... 2b8d11c7-...`

const rmShortDesc string = "Remove a source and its chunks"

func newRmCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "rm <notebook> <source>",
		Short: rmShortDesc,
		Long:  rmLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveAPITarget(cmd)
			if err != nil {
				return err
			}
			return runRm(cmd.Context(), target, args[0], args[1])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func runRm(ctx context.Context, apiTarget, notebookID, sourceID string) error {
	client, err := apiclient.New(apiTarget)
	if err != nil {
		return err
	}

	if err := client.RemoveSource(ctx, notebookID, sourceID); err != nil {
		return err
	}

	fmt.Printf("\n  %s Removed source %s\n\n", cliui.SuccessMark, idStyle.Render(sourceID))
	return nil
}
