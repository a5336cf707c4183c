package notebookcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/cliui"
	"github.com/quillworksco/folio/pkg/config"
)

const createLongDesc string = `Create a notebook.

Creates a new, empty notebook with the given name. Add sources with
folio source add, then index them with folio ingest.

Examples:
  folio notebook create "thesis research"`

const createShortDesc string = "Create a notebook"

func newCreateCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: createShortDesc,
		Long:  createLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveAPITarget(cmd)
			if err != nil {
				return err
			}
			return runCreate(cmd.Context(), target, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func runCreate(ctx context.Context, apiTarget, name string) error {
	client, err := apiclient.New(apiTarget)
	if err != nil {
		return err
	}

	nb, err := client.CreateNotebook(ctx, name)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Created notebook %s %s\n\n",
		cliui.SuccessMark,
		nameStyle.Render(nb.Name),
		idStyle.Render(nb.ID),
	)
	return nil
}
