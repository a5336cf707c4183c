package sourcecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quillworksco/folio/pkg/apiclient"
	"github.com/quillworksco/folio/pkg/cliui"
	"github.com/quillworksco/folio/pkg/config"
)

const addLongDesc string = `Add extracted text to a notebook.

Reads text from the given file, or from stdin when no file is provided,
and attaches it to the notebook as a new source. The title defaults to
the file name.

Text extraction happens before folio: feed it plain text, not PDFs or
HTML.

Examples:
  folio source add 6f1c9a04-... notes.txt
  folio source add 6f1c9a04-... notes.txt --title "Lecture notes"
  cat paper.txt | folio source add 6f1c9a04-... --title "Paper"`

const addShortDesc string = "Add extracted text to a notebook"

func newAddCmd() *cobra.Command {
	var (
		apiTarget string
		title     string
	)

	cmd := &cobra.Command{
		Use:   "add <notebook> [file]",
		Short: addShortDesc,
		Long:  addLongDesc,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveAPITarget(cmd)
			if err != nil {
				return err
			}

			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			return runAdd(cmd.Context(), target, args[0], file, title)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&title, "title", "t", "", "Source title (default: file name)")
	cmd.Flags().StringVar(&apiTarget, "api-target", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func runAdd(ctx context.Context, apiTarget, notebookID, file, title string) error {
	text, err := readText(file)
	if err != nil {
		return err
	}
	if title == "" && file != "" {
		title = filepath.Base(file)
	}

	client, err := apiclient.New(apiTarget)
	if err != nil {
		return err
	}

	src, err := client.AddSource(ctx, notebookID, title, text)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Added source %s %s\n",
		cliui.SuccessMark,
		titleStyle.Render(src.Title),
		idStyle.Render(src.ID),
	)
	fmt.Printf("  %s\n\n", dimStyle.Render(fmt.Sprintf("%d characters, run folio ingest %s to index", len(text), notebookID)))
	return nil
}

func readText(file string) (string, error) {
	if file == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}
