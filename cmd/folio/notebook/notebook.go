// Package notebookcmder provides the notebook command for managing notebooks
// via the folio API.
package notebookcmder

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/config"
)

var (
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

const notebookLongDesc string = `Manage notebooks via the folio API.

A notebook is a named collection of sources that can be ingested into a
vector index and queried. Requires a running folio API server.

Use subcommands to create, list, and remove notebooks:
  folio notebook create <name>    Create a notebook
  folio notebook list             List all notebooks
  folio notebook rm <id>          Remove a notebook and its index

Examples:
  folio notebook create "thesis research"
  folio notebook list
  folio notebook rm 6f1c9a04-...`

const notebookShortDesc string = "Manage notebooks"

func NewNotebookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notebook",
		Short: notebookShortDesc,
		Long:  notebookLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRmCmd())

	return cmd
}

// resolveAPITarget returns the API target from the --api-target flag when
// set, falling back to the configured client.api_target.
func resolveAPITarget(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("api-target") {
		return cmd.Flags().GetString("api-target")
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.Client.APITarget, nil
}
