package rag_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/folio/pkg/logger"
	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/rag"
	"github.com/quillworksco/folio/pkg/store/inmemory"
	testutils "github.com/quillworksco/folio/pkg/utils/test"
	"github.com/quillworksco/folio/pkg/vector"
)

func match(id, sourceID, chunkIndex, text string, score float64) vector.Match {
	return vector.Match{
		Record: vector.Record{
			ID:   id,
			Text: text,
			Metadata: map[string]string{
				vector.MetaSourceID:   sourceID,
				vector.MetaChunkIndex: chunkIndex,
			},
		},
		Score: score,
	}
}

var _ = Describe("Searcher", func() {
	var (
		ctx        context.Context
		driver     *inmemory.Driver
		index      *testutils.MockIndex
		searcher   *rag.Searcher
		nb         *notebook.Notebook
		collection string
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		index = testutils.NewMockIndex()
		searcher = rag.NewSearcher(driver, index, logger.Nop())

		nb = notebook.New("research")
		Expect(driver.CreateNotebook(ctx, nb)).To(Succeed())
		collection = vector.CollectionName(nb.ID)
		Expect(index.EnsureCollection(ctx, collection)).To(Succeed())
	})

	It("returns ranked results with chunk provenance", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src-a", "0", "first chunk", 0.9),
			match("c2", "src-a", "1", "second chunk", 0.7),
		})

		results, err := searcher.Search(ctx, nb.ID, "query", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].ChunkID).To(Equal("c1"))
		Expect(results[0].SourceID).To(Equal("src-a"))
		Expect(results[0].ChunkIndex).To(Equal(0))
		Expect(results[0].Score).To(BeNumerically("~", 0.9, 1e-9))
	})

	It("orders by score descending with deterministic tie-breaks", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c3", "src-b", "2", "b two", 0.5),
			match("c1", "src-b", "1", "b one", 0.8),
			match("c2", "src-a", "2", "a two", 0.5),
			match("c4", "src-a", "7", "a seven", 0.5),
		})

		results, err := searcher.Search(ctx, nb.ID, "query", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].ChunkID).To(Equal("c1"))
		// Ties: chunk index ascending, then source ID ascending when the
		// sources are no longer in the store.
		Expect(results[1].ChunkID).To(Equal("c2"))
		Expect(results[2].ChunkID).To(Equal("c3"))
		Expect(results[3].ChunkID).To(Equal("c4"))
	})

	It("breaks remaining ties by source creation order, not source ID", func() {
		// Created zebra before apple: creation order disagrees with
		// lexicographic ID order.
		zebra := notebook.NewSource(nb.ID, "zebra", "zebra text")
		zebra.ID = "src-zebra"
		apple := notebook.NewSource(nb.ID, "apple", "apple text")
		apple.ID = "src-apple"
		Expect(driver.AddSource(ctx, zebra)).To(Succeed())
		Expect(driver.AddSource(ctx, apple)).To(Succeed())

		index.SetQueryResults(collection, []vector.Match{
			match("c1", apple.ID, "0", "apple chunk", 0.5),
			match("c2", zebra.ID, "0", "zebra chunk", 0.5),
		})

		results, err := searcher.Search(ctx, nb.ID, "query", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].SourceID).To(Equal(zebra.ID))
		Expect(results[1].SourceID).To(Equal(apple.ID))
	})

	It("rejects unknown notebooks", func() {
		_, err := searcher.Search(ctx, "missing", "query", 5)
		Expect(err).To(MatchError(rag.ErrNotebookNotFound))
	})

	It("returns no results for a notebook that was never ingested", func() {
		other := notebook.New("empty")
		Expect(driver.CreateNotebook(ctx, other)).To(Succeed())

		results, err := searcher.Search(ctx, other.ID, "query", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("caps results at the limit", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src", "0", "one", 0.9),
			match("c2", "src", "1", "two", 0.8),
			match("c3", "src", "2", "three", 0.7),
		})

		results, err := searcher.Search(ctx, nb.ID, "query", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
	})

	It("applies the default limit when the caller passes zero", func() {
		matches := make([]vector.Match, 8)
		for i := range matches {
			matches[i] = match(
				"c"+string(rune('0'+i)), "src", "0", "text", 0.9-float64(i)*0.05,
			)
		}
		index.SetQueryResults(collection, matches)

		results, err := searcher.Search(ctx, nb.ID, "query", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(rag.DefaultSearchLimit))
	})

	It("rejects a negative limit", func() {
		index.SetQueryResults(collection, []vector.Match{
			match("c1", "src", "0", "one", 0.9),
		})

		_, err := searcher.Search(ctx, nb.ID, "query", -1)
		Expect(err).To(MatchError(rag.ErrInvalidConfiguration))
	})
})
