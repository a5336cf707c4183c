package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	testutils "github.com/quillworksco/folio/pkg/utils/test"
	"github.com/quillworksco/folio/pkg/vector"
	"github.com/quillworksco/folio/pkg/vector/sqlitevec"
)

var _ = Describe("Index", func() {
	var (
		logger   *zap.Logger
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		logger = zap.NewNop()
		embedder = testutils.NewMockEmbedder()
		embedder.Embeddings = map[string][]float32{
			"alpha text": {0.1, 0.1, 0.1},
			"beta text":  {0.5, 0.5, 0.5},
			"gamma text": {0.9, 0.9, 0.9},
			"near alpha": {0.12, 0.12, 0.12},
		}
	})

	newIndex := func() *sqlitevec.Index {
		idx, err := sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 3,
		}, embedder, logger)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(idx.Close()).To(Succeed())
		})
		return idx
	}

	record := func(id, sourceID, text string) vector.Record {
		return vector.Record{
			ID:   id,
			Text: text,
			Metadata: map[string]string{
				vector.MetaSourceID:   sourceID,
				vector.MetaChunkIndex: "0",
			},
		}
	}

	Describe("NewIndex", func() {
		It("returns an error when DBPath is empty", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{Dimensions: 3}, embedder, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("returns an error when dimensions are not configured", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{DBPath: ":memory:"}, embedder, logger)
			Expect(err).To(HaveOccurred())
		})

		It("returns an error when the embedder is missing", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{DBPath: ":memory:", Dimensions: 3}, nil, logger)
			Expect(err).To(HaveOccurred())
		})

		It("creates an index with an in-memory database", func() {
			idx := newIndex()
			Expect(idx).NotTo(BeNil())
		})
	})

	Describe("Upsert and Get", func() {
		It("stores records and retrieves them by id", func() {
			idx := newIndex()
			ctx := context.Background()

			err := idx.Upsert(ctx, "col-1", []vector.Record{
				record("c1", "src-1", "alpha text"),
				record("c2", "src-1", "beta text"),
			})
			Expect(err).NotTo(HaveOccurred())

			records, err := idx.Get(ctx, "col-1", []string{"c1", "c2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("overwrites by id instead of duplicating", func() {
			idx := newIndex()
			ctx := context.Background()

			Expect(idx.Upsert(ctx, "col-1", []vector.Record{record("c1", "src-1", "alpha text")})).To(Succeed())
			Expect(idx.Upsert(ctx, "col-1", []vector.Record{record("c1", "src-1", "beta text")})).To(Succeed())

			count, err := idx.Count(ctx, "col-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			records, err := idx.Get(ctx, "col-1", []string{"c1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Text).To(Equal("beta text"))
		})

		It("keeps collections isolated", func() {
			idx := newIndex()
			ctx := context.Background()

			Expect(idx.Upsert(ctx, "col-1", []vector.Record{record("c1", "src-1", "alpha text")})).To(Succeed())
			Expect(idx.Upsert(ctx, "col-2", []vector.Record{record("c1", "src-2", "beta text")})).To(Succeed())

			records, err := idx.Get(ctx, "col-1", []string{"c1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Text).To(Equal("alpha text"))
		})

		It("skips ids that do not exist", func() {
			idx := newIndex()
			ctx := context.Background()

			Expect(idx.Upsert(ctx, "col-1", []vector.Record{record("c1", "src-1", "alpha text")})).To(Succeed())

			records, err := idx.Get(ctx, "col-1", []string{"c1", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("returns ErrCollectionNotFound for unknown collections", func() {
			idx := newIndex()

			_, err := idx.Get(context.Background(), "missing", []string{"c1"})
			Expect(err).To(MatchError(vector.ErrCollectionNotFound))
		})
	})

	Describe("Query", func() {
		It("ranks matches by similarity to the query", func() {
			idx := newIndex()
			ctx := context.Background()

			err := idx.Upsert(ctx, "col-1", []vector.Record{
				record("c1", "src-1", "alpha text"),
				record("c2", "src-1", "beta text"),
				record("c3", "src-1", "gamma text"),
			})
			Expect(err).NotTo(HaveOccurred())

			matches, err := idx.Query(ctx, "col-1", "near alpha", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].Record.ID).To(Equal("c1"))

			for i := 1; i < len(matches); i++ {
				Expect(matches[i-1].Score).To(BeNumerically(">=", matches[i].Score))
			}
			for _, m := range matches {
				Expect(m.Score).To(BeNumerically(">=", 0))
				Expect(m.Score).To(BeNumerically("<=", 1))
			}
		})

		It("returns ErrCollectionNotFound for unknown collections", func() {
			idx := newIndex()

			_, err := idx.Query(context.Background(), "missing", "anything", 5)
			Expect(err).To(MatchError(vector.ErrCollectionNotFound))
		})
	})

	Describe("DeleteBySource", func() {
		It("removes only the source's records", func() {
			idx := newIndex()
			ctx := context.Background()

			err := idx.Upsert(ctx, "col-1", []vector.Record{
				record("c1", "src-1", "alpha text"),
				record("c2", "src-2", "beta text"),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(idx.DeleteBySource(ctx, "col-1", "src-1")).To(Succeed())

			count, err := idx.Count(ctx, "col-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			records, err := idx.Get(ctx, "col-1", []string{"c2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})
	})

	Describe("DeleteCollection", func() {
		It("removes the collection and its records", func() {
			idx := newIndex()
			ctx := context.Background()

			Expect(idx.Upsert(ctx, "col-1", []vector.Record{record("c1", "src-1", "alpha text")})).To(Succeed())
			Expect(idx.DeleteCollection(ctx, "col-1")).To(Succeed())

			_, err := idx.Count(ctx, "col-1")
			Expect(err).To(MatchError(vector.ErrCollectionNotFound))
		})
	})

	Describe("Count", func() {
		It("counts an empty ensured collection as zero", func() {
			idx := newIndex()
			ctx := context.Background()

			Expect(idx.EnsureCollection(ctx, "col-1")).To(Succeed())

			count, err := idx.Count(ctx, "col-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
