package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/llm"
	"github.com/quillworksco/folio/pkg/utils"
)

// InsufficientContextAnswer is returned verbatim when retrieval finds
// nothing to ground an answer on. No model call is made in that case.
const InsufficientContextAnswer = "I don't have enough information in this notebook to answer that question."

// citationSnippetLen bounds how much chunk text a citation carries.
const citationSnippetLen = 200

// Answerer answers questions against a notebook by retrieving relevant
// chunks and prompting a generator with them.
type Answerer struct {
	searcher  *Searcher
	generator llm.Generator
	logger    *zap.Logger
}

// AskOptions tune one question.
type AskOptions struct {
	// Limit caps how many chunks ground the answer. Defaults to
	// DefaultSearchLimit if zero; negative values are rejected.
	Limit int

	// Temperature and MaxTokens pass through to the generator.
	Temperature float64
	MaxTokens   int
}

// NewAnswerer creates an answerer on top of a searcher and a generator.
func NewAnswerer(searcher *Searcher, generator llm.Generator, logger *zap.Logger) *Answerer {
	return &Answerer{
		searcher:  searcher,
		generator: generator,
		logger:    logger,
	}
}

// Ask retrieves context for the question and generates a grounded answer
// with citations. When retrieval comes back empty the fixed
// InsufficientContextAnswer is returned with zero confidence.
func (a *Answerer) Ask(ctx context.Context, notebookID, question string, opts AskOptions) (*Answer, error) {
	results, err := a.searcher.Search(ctx, notebookID, question, opts.Limit)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		a.logger.Debug("no retrieval results, skipping generation",
			zap.String("notebook_id", notebookID),
		)
		return &Answer{
			Question:   question,
			Text:       InsufficientContextAnswer,
			Confidence: 0,
		}, nil
	}

	// Most relevant passage first; the prompt numbering follows retrieval
	// rank.
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}

	text, err := a.generator.Generate(ctx, llm.Request{
		Question:    question,
		Context:     passages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	citations := make([]Citation, len(results))
	for i, r := range results {
		citations[i] = Citation{
			SourceID:   r.SourceID,
			ChunkID:    r.ChunkID,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
			Snippet:    utils.Truncate(r.Text, citationSnippetLen),
		}
	}

	answer := &Answer{
		Question:   question,
		Text:       text,
		Confidence: confidence(results),
		Citations:  citations,
	}

	a.logger.Info("answered question",
		zap.String("notebook_id", notebookID),
		zap.Float64("confidence", answer.Confidence),
		zap.Int("citations", len(citations)),
	)

	return answer, nil
}

// confidence is a rank-weighted mean of retrieval scores: the top result
// weighs 1, the second 1/2, the third 1/3, and so on. Strong top matches
// dominate; a long tail of weak matches cannot inflate the figure.
func confidence(results []SimilarityResult) float64 {
	var weighted, total float64
	for i, r := range results {
		w := 1.0 / float64(i+1)
		weighted += r.Score * w
		total += w
	}
	if total == 0 {
		return 0
	}

	c := weighted / total
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
