package notebookcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/config"
)

const listLongDesc string = `List all notebooks.

Displays every notebook known to the folio API server with its ID and
creation time.

Examples:
  folio notebook list`

const listShortDesc string = "List all notebooks"

func newListCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := resolveAPITarget(cmd)
			if err != nil {
				return err
			}
			return runList(cmd.Context(), target)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func runList(ctx context.Context, apiTarget string) error {
	client, err := apiclient.New(apiTarget)
	if err != nil {
		return err
	}

	out, err := client.ListNotebooks(ctx)
	if err != nil {
		return err
	}

	if out.Count == 0 {
		fmt.Println("No notebooks found.")
		return nil
	}

	fmt.Printf("\n%s\n\n", headerStyle.Render(fmt.Sprintf("Notebooks (%d)", out.Count)))
	for _, nb := range out.Notebooks {
		fmt.Printf("  %s  %s  %s\n",
			idStyle.Render(nb.ID),
			nameStyle.Render(nb.Name),
			dimStyle.Render(nb.CreatedAt.Format("2006-01-02 15:04")),
		)
	}
	fmt.Println()

	return nil
}
