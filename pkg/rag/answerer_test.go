package rag_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/folio/pkg/llm"
	"github.com/quillworksco/folio/pkg/logger"
	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/rag"
	"github.com/quillworksco/folio/pkg/store/inmemory"
	testutils "github.com/quillworksco/folio/pkg/utils/test"
	"github.com/quillworksco/folio/pkg/vector"
)

var _ = Describe("Answerer", func() {
	var (
		ctx        context.Context
		driver     *inmemory.Driver
		index      *testutils.MockIndex
		generator  *testutils.MockGenerator
		answerer   *rag.Answerer
		nb         *notebook.Notebook
		collection string
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		index = testutils.NewMockIndex()
		generator = testutils.NewMockGenerator("The answer is 42.")
		answerer = rag.NewAnswerer(rag.NewSearcher(driver, index, logger.Nop()), generator, logger.Nop())

		nb = notebook.New("research")
		Expect(driver.CreateNotebook(ctx, nb)).To(Succeed())
		collection = vector.CollectionName(nb.ID)
		Expect(index.EnsureCollection(ctx, collection)).To(Succeed())
	})

	It("answers from retrieved context with citations", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src-a", "0", "relevant passage one", 0.9),
			match("c2", "src-b", "3", "relevant passage two", 0.6),
		})

		answer, err := answerer.Ask(ctx, nb.ID, "what is the answer?", rag.AskOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Text).To(Equal("The answer is 42."))
		Expect(answer.Question).To(Equal("what is the answer?"))

		Expect(answer.Citations).To(HaveLen(2))
		Expect(answer.Citations[0].ChunkID).To(Equal("c1"))
		Expect(answer.Citations[0].SourceID).To(Equal("src-a"))
		Expect(answer.Citations[0].Snippet).To(Equal("relevant passage one"))
		Expect(answer.Citations[1].ChunkIndex).To(Equal(3))
	})

	It("passes retrieved passages to the generator most relevant first", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c2", "src", "1", "weaker passage", 0.5),
			match("c1", "src", "0", "stronger passage", 0.9),
		})

		_, err := answerer.Ask(ctx, nb.ID, "question", rag.AskOptions{})
		Expect(err).NotTo(HaveOccurred())

		Expect(generator.Requests).To(HaveLen(1))
		Expect(generator.Requests[0].Context).To(Equal([]string{"stronger passage", "weaker passage"}))
		Expect(generator.Requests[0].Question).To(Equal("question"))
	})

	It("weights confidence toward the top-ranked results", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src", "0", "one", 1.0),
			match("c2", "src", "1", "two", 0.0),
		})

		answer, err := answerer.Ask(ctx, nb.ID, "question", rag.AskOptions{})
		Expect(err).NotTo(HaveOccurred())
		// Weights 1 and 1/2: (1*1 + 0*0.5) / 1.5
		Expect(answer.Confidence).To(BeNumerically("~", 2.0/3.0, 1e-9))
	})

	It("returns the fixed refusal without calling the model when retrieval is empty", func() {
		answer, err := answerer.Ask(ctx, nb.ID, "question", rag.AskOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Text).To(Equal(rag.InsufficientContextAnswer))
		Expect(answer.Confidence).To(BeZero())
		Expect(answer.Citations).To(BeEmpty())
		Expect(generator.Requests).To(BeEmpty())
	})

	It("truncates long citation snippets", func() {
		long := strings.Repeat("x", 500)
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src", "0", long, 0.9),
		})

		answer, err := answerer.Ask(ctx, nb.ID, "question", rag.AskOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(answer.Citations[0].Snippet)).To(BeNumerically("<", len(long)))
		Expect(answer.Citations[0].Snippet).To(HaveSuffix("..."))
	})

	It("propagates generation failures", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src", "0", "passage", 0.9),
		})
		generator.Err = llm.ErrGeneration

		_, err := answerer.Ask(ctx, nb.ID, "question", rag.AskOptions{})
		Expect(err).To(MatchError(rag.ErrGenerationFailed))
	})

	It("rejects unknown notebooks", func() {
		_, err := answerer.Ask(ctx, "missing", "question", rag.AskOptions{})
		Expect(err).To(MatchError(rag.ErrNotebookNotFound))
	})
})
