// Package foliocmder
package foliocmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/quillworksco/folio/cmd/folio/ask"
	configcmder "github.com/quillworksco/folio/cmd/folio/config"
	ingestcmder "github.com/quillworksco/folio/cmd/folio/ingest"
	notebookcmder "github.com/quillworksco/folio/cmd/folio/notebook"
	searchcmder "github.com/quillworksco/folio/cmd/folio/search"
	servecmder "github.com/quillworksco/folio/cmd/folio/serve"
	sourcecmder "github.com/quillworksco/folio/cmd/folio/source"
	versioncmder "github.com/quillworksco/folio/cmd/version"
)

const folioLongDesc string = `Folio is a question-answering engine for your notebooks.

Collect sources into notebooks, ingest them into a vector index, then
search and ask questions grounded in what you collected:
  folio serve                      Run the API server
  folio notebook create <name>     Create a notebook
  folio source add <notebook>      Add extracted text to a notebook
  folio ingest <notebook>          Chunk and index a notebook's sources
  folio search <notebook> <query>  Similarity search over indexed chunks
  folio ask <notebook> <question>  Ask a question with cited answers`

const folioShortDesc string = "Folio - Notebook Question Answering"

func NewFolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: folioShortDesc,
		Long:  folioLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.folio or ~/.folio)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(notebookcmder.NewNotebookCmd())
	cmd.AddCommand(sourcecmder.NewSourceCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
