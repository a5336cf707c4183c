// Package searchcmder provides the search command for similarity search over
// a notebook's indexed chunks.
package searchcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/config"
	"github.com/quillworksco/folio/pkg/rag"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	notebookID string
	query      string
	limit      int
	quiet      bool

	apiTarget string
}

const searchLongDesc string = `Search a notebook's indexed chunks.

Runs a similarity search over the notebook's vector collection, returning
the chunks most relevant to the query text. Requires a running folio API
server and an ingested notebook.

Use --quiet to output only chunk IDs, one per line, for piping into other
commands.

Examples:
  folio search 6f1c9a04-... "how does chunk overlap work"
  folio search 6f1c9a04-... "retrieval scoring" --limit 10
  folio search 6f1c9a04-... "scoring" --quiet`

const searchShortDesc string = "Similarity search over a notebook"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <notebook> <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.notebookID = args[0]
			cmder.query = args[1]
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 0, "Number of results to return (default: server setting)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only chunk IDs, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	client, err := apiclient.New(c.apiTarget)
	if err != nil {
		return err
	}

	out, err := client.Search(ctx, c.notebookID, c.query, c.limit)
	if err != nil {
		return err
	}

	if len(out.Results) == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range out.Results {
			fmt.Println(result.ChunkID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", out.Query)),
	)

	for i, result := range out.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result rag.SimilarityResult) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		idStyle.Render(result.ChunkID),
	)
	fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("source %s, chunk %d", result.SourceID, result.ChunkIndex)))

	text := strings.ReplaceAll(result.Text, "\n", " ")
	if len(text) > 160 {
		text = text[:157] + "..."
	}
	fmt.Printf("  %s\n\n", previewStyle.Render(text))
}
