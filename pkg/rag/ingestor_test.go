package rag_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/folio/pkg/eventstream/nop"
	"github.com/quillworksco/folio/pkg/logger"
	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/rag"
	"github.com/quillworksco/folio/pkg/store/inmemory"
	testutils "github.com/quillworksco/folio/pkg/utils/test"
	"github.com/quillworksco/folio/pkg/vector"
)

var _ = Describe("Ingestor", func() {
	var (
		ctx      context.Context
		driver   *inmemory.Driver
		index    *testutils.MockIndex
		ingestor *rag.Ingestor
		nb       *notebook.Notebook
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		index = testutils.NewMockIndex()
		ingestor = rag.NewIngestor(rag.IngestorConfig{}, driver, index, nop.NewPublisher(), logger.Nop())

		nb = notebook.New("research")
		Expect(driver.CreateNotebook(ctx, nb)).To(Succeed())
	})

	Describe("IngestNotebook", func() {
		It("chunks sources into the notebook's collection", func() {
			src := notebook.NewSource(nb.ID, "paper", strings.Repeat("alpha beta gamma ", 200))
			Expect(driver.AddSource(ctx, src)).To(Succeed())

			result, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ChunksIngested).To(BeNumerically(">", 1))
			Expect(result.SourcesSkipped).To(BeZero())

			collection := vector.CollectionName(nb.ID)
			Expect(index.Records(collection)).To(HaveLen(result.ChunksIngested))
		})

		It("stamps each chunk with notebook, source, index, and hash metadata", func() {
			src := notebook.NewSource(nb.ID, "paper", "a short source")
			Expect(driver.AddSource(ctx, src)).To(Succeed())

			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())

			records := index.Records(vector.CollectionName(nb.ID))
			Expect(records).To(HaveLen(1))
			Expect(records[0].ID).To(Equal(rag.ChunkID(src.ID, 0)))
			Expect(records[0].Metadata[vector.MetaNotebookID]).To(Equal(nb.ID))
			Expect(records[0].Metadata[vector.MetaSourceID]).To(Equal(src.ID))
			Expect(records[0].Metadata[vector.MetaChunkIndex]).To(Equal("0"))
			Expect(records[0].Metadata[vector.MetaContentHash]).To(Equal(src.ContentHash))
		})

		It("skips unchanged sources on re-ingestion", func() {
			src := notebook.NewSource(nb.ID, "paper", "a short source")
			Expect(driver.AddSource(ctx, src)).To(Succeed())

			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			firstBatches := len(index.UpsertBatches)

			result, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ChunksIngested).To(BeZero())
			Expect(result.SourcesSkipped).To(Equal(1))
			Expect(index.UpsertBatches).To(HaveLen(firstBatches))
		})

		It("re-ingests unchanged sources when forced", func() {
			src := notebook.NewSource(nb.ID, "paper", "a short source")
			Expect(driver.AddSource(ctx, src)).To(Succeed())

			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())

			result, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{Force: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ChunksIngested).To(Equal(1))
		})

		It("replaces a changed source's chunks instead of accumulating them", func() {
			src := notebook.NewSource(nb.ID, "paper", strings.Repeat("first version ", 300))
			Expect(driver.AddSource(ctx, src)).To(Succeed())
			first, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.ChunksIngested).To(BeNumerically(">", 1))

			// Same source ID, shorter replacement text. The store holds
			// immutable sources, so stage the changed copy in a fresh store
			// against the same index.
			changed := *src
			changed.ExtractedText = "second version, much shorter"
			changed.ContentHash = notebook.ContentHash(changed.ExtractedText)

			driver = inmemory.NewDriver()
			Expect(driver.CreateNotebook(ctx, nb)).To(Succeed())
			Expect(driver.AddSource(ctx, &changed)).To(Succeed())
			ingestor = rag.NewIngestor(rag.IngestorConfig{}, driver, index, nop.NewPublisher(), logger.Nop())

			second, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ChunksIngested).To(Equal(1))

			collection := vector.CollectionName(nb.ID)
			var fromOldSource int
			for _, rec := range index.Records(collection) {
				if rec.Metadata[vector.MetaSourceID] == src.ID &&
					rec.Metadata[vector.MetaContentHash] == src.ContentHash {
					fromOldSource++
				}
			}
			Expect(fromOldSource).To(BeZero())
			Expect(index.DeletedSources).To(ContainElement(collection + "/" + src.ID))
		})

		It("ignores deleted and empty sources without counting them skipped", func() {
			deleted := notebook.NewSource(nb.ID, "gone", "text")
			empty := notebook.NewSource(nb.ID, "empty", "")
			Expect(driver.AddSource(ctx, deleted)).To(Succeed())
			Expect(driver.AddSource(ctx, empty)).To(Succeed())
			Expect(driver.RemoveSource(ctx, deleted.ID)).To(Succeed())

			result, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ChunksIngested).To(BeZero())
			// Skipped is reserved for unchanged content hashes.
			Expect(result.SourcesSkipped).To(BeZero())
			Expect(index.UpsertBatches).To(BeEmpty())
		})

		It("splits large ingestions into bounded upsert batches", func() {
			ingestor = rag.NewIngestor(rag.IngestorConfig{BatchSize: 2}, driver, index, nop.NewPublisher(), logger.Nop())
			src := notebook.NewSource(nb.ID, "paper", strings.Repeat("lorem ipsum dolor sit amet ", 300))
			Expect(driver.AddSource(ctx, src)).To(Succeed())

			result, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ChunksIngested).To(BeNumerically(">", 2))
			for _, batch := range index.UpsertBatches {
				Expect(len(batch)).To(BeNumerically("<=", 2))
			}
		})

		It("rejects unknown notebooks", func() {
			_, err := ingestor.IngestNotebook(ctx, "missing", rag.IngestOptions{})
			Expect(err).To(MatchError(rag.ErrNotebookNotFound))
		})

		It("rejects invalid chunking configuration before touching the index", func() {
			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{ChunkSize: 100, Overlap: 100})
			Expect(err).To(MatchError(rag.ErrInvalidConfiguration))
			Expect(index.UpsertBatches).To(BeEmpty())
		})

		It("produces identical chunk IDs across repeated forced ingestions", func() {
			src := notebook.NewSource(nb.ID, "paper", strings.Repeat("stable text ", 250))
			Expect(driver.AddSource(ctx, src)).To(Succeed())

			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())
			collection := vector.CollectionName(nb.ID)
			firstIDs := map[string]bool{}
			for _, rec := range index.Records(collection) {
				firstIDs[rec.ID] = true
			}

			_, err = ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{Force: true})
			Expect(err).NotTo(HaveOccurred())
			for _, rec := range index.Records(collection) {
				Expect(firstIDs).To(HaveKey(rec.ID))
			}
		})
	})

	Describe("PurgeNotebook", func() {
		It("drops the collection", func() {
			src := notebook.NewSource(nb.ID, "paper", "text")
			Expect(driver.AddSource(ctx, src)).To(Succeed())
			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(ingestor.PurgeNotebook(ctx, nb.ID)).To(Succeed())

			count, err := ingestor.Count(ctx, nb.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("rejects unknown notebooks", func() {
			Expect(ingestor.PurgeNotebook(ctx, "missing")).To(MatchError(rag.ErrNotebookNotFound))
		})
	})

	Describe("PurgeSource", func() {
		It("removes only that source's chunks", func() {
			keep := notebook.NewSource(nb.ID, "keep", "kept text")
			drop := notebook.NewSource(nb.ID, "drop", "dropped text")
			Expect(driver.AddSource(ctx, keep)).To(Succeed())
			Expect(driver.AddSource(ctx, drop)).To(Succeed())
			_, err := ingestor.IngestNotebook(ctx, nb.ID, rag.IngestOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(ingestor.PurgeSource(ctx, nb.ID, drop.ID)).To(Succeed())

			records := index.Records(vector.CollectionName(nb.ID))
			Expect(records).To(HaveLen(1))
			Expect(records[0].Metadata[vector.MetaSourceID]).To(Equal(keep.ID))
		})
	})

	Describe("Count", func() {
		It("counts zero for a never-ingested notebook", func() {
			count, err := ingestor.Count(ctx, nb.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
