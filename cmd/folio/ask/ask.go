// Package askcmder provides the ask command for question answering over a
// notebook.
package askcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/api"
	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/cliui"
	"github.com/quillworksco/folio/pkg/config"
	"github.com/quillworksco/folio/pkg/rag"
)

var (
	confidenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	idStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type askCommander struct {
	notebookID string
	question   string
	limit      int
	plain      bool

	apiTarget string
}

const askLongDesc string = `Ask a question against a notebook.

Retrieves the chunks most relevant to the question, prompts the configured
LLM with them, and prints the answer with a confidence score and citations
back to the source chunks.

Answers are grounded in the notebook: when the index holds nothing
relevant, folio says so instead of guessing.

Examples:
  folio ask 6f1c9a04-... "what does the paper conclude?"
  folio ask 6f1c9a04-... "summarize the method" --limit 10
  folio ask 6f1c9a04-... "what is chunk overlap?" --plain`

const askShortDesc string = "Ask a question against a notebook"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <notebook> <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
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
			cmder.question = args[1]
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 0, "Number of chunks to retrieve (default: server setting)")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the answer as plain text without markdown rendering")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *askCommander) run(ctx context.Context) error {
	client, err := apiclient.New(c.apiTarget)
	if err != nil {
		return err
	}

	answer, err := client.Ask(ctx, c.notebookID, api.AskRequest{
		Question: c.question,
		Limit:    c.limit,
	})
	if err != nil {
		return err
	}

	c.printAnswer(answer)
	return nil
}

func (c *askCommander) printAnswer(answer *rag.Answer) {
	fmt.Printf("\n%s %s\n",
		headerStyle.Render("Q:"),
		answer.Question,
	)

	text := answer.Text
	if !c.plain {
		if rendered, err := cliui.RenderMarkdown(text); err == nil {
			text = rendered
		}
	}
	fmt.Printf("\n%s\n", strings.TrimRight(text, "\n"))

	fmt.Printf("\n  %s %s\n",
		dimStyle.Render("confidence:"),
		confidenceStyle.Render(fmt.Sprintf("%.2f", answer.Confidence)),
	)

	if len(answer.Citations) > 0 {
		fmt.Printf("\n%s\n", headerStyle.Render("Citations"))
		for i, cit := range answer.Citations {
			fmt.Printf("  [%d] %s %s\n",
				i+1,
				idStyle.Render(fmt.Sprintf("%s#%d", cit.SourceID, cit.ChunkIndex)),
				dimStyle.Render(fmt.Sprintf("score %.4f", cit.Score)),
			)
			snippet := strings.ReplaceAll(cit.Snippet, "\n", " ")
			fmt.Printf("      %s\n", dimStyle.Render(snippet))
		}
	}
	fmt.Println()
}
