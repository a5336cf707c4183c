// Package sourcecmder provides the source command for managing notebook
// sources via the folio API.
package sourcecmder

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/config"
)

var (
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

const sourceLongDesc string = `Manage notebook sources via the folio API.

A source is a unit of already-extracted text attached to a notebook.
Sources become searchable after the notebook is ingested with folio ingest.

Use subcommands to add, list, and remove sources:
  folio source add <notebook> [file]    Add extracted text to a notebook
  folio source list <notebook>          List a notebook's sources
  folio source rm <notebook> <source>   Remove a source and its chunks

Examples:
  folio source add 6f1c9a04-... notes.txt --title "Lecture notes"
  cat paper.txt | folio source add 6f1c9a04-... --title "Paper"
  folio source list 6f1c9a04-...`

const sourceShortDesc string = "Manage notebook sources"

func NewSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: sourceShortDesc,
		Long:  sourceLongDesc,
	}

	cmd.AddCommand(newAddCmd())
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
