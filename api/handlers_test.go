package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

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

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](resp *http.Response) T {
	var out T
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(data, &out)).To(Succeed(), "body: %s", string(data))
	return out
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		index  *testutils.MockIndex
		gen    *testutils.MockGenerator
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		index = testutils.NewMockIndex()
		gen = testutils.NewMockGenerator("generated answer")

		log := logger.Nop()
		ingestor := rag.NewIngestor(rag.IngestorConfig{}, driver, index, nop.NewPublisher(), log)
		searcher := rag.NewSearcher(driver, index, log)
		answerer := rag.NewAnswerer(searcher, gen, log)
		server = NewServer(Config{ListenAddr: ":0"}, driver, ingestor, searcher, answerer, log)
	})

	Describe("GET /ping", func() {
		It("pongs", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("notebook lifecycle", func() {
		It("creates, lists, fetches, and deletes notebooks", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks", CreateNotebookRequest{Name: "research"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			created := decode[notebook.Notebook](resp)
			Expect(created.ID).NotTo(BeEmpty())

			resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+created.ID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodDelete, "/v1/notebooks/"+created.ID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+created.ID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("rejects notebooks without a name", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks", CreateNotebookRequest{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("404s on unknown notebooks", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/missing", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("sources and ingestion", func() {
		var nb notebook.Notebook

		BeforeEach(func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks", CreateNotebookRequest{Name: "research"}))
			Expect(err).NotTo(HaveOccurred())
			nb = decode[notebook.Notebook](resp)
		})

		It("adds sources and ingests them", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/sources", AddSourceRequest{
				Title:         "paper",
				ExtractedText: "some research text",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			resp, err = server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ingest", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			result := decode[rag.IngestResult](resp)
			Expect(result.ChunksIngested).To(Equal(1))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+nb.ID+"/vectors/count", nil))
			Expect(err).NotTo(HaveOccurred())
			count := decode[CountResponse](resp)
			Expect(count.Chunks).To(Equal(1))
		})

		It("rejects sources without text", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/sources", AddSourceRequest{Title: "empty"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("maps invalid chunking options to 400", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ingest", IngestRequest{
				ChunkSize: 100,
				Overlap:   200,
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("maps backend unavailability to 503", func() {
			index.Err = fmt.Errorf("dial: %w", vector.ErrBackendUnavailable)
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ingest", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})

		It("removes a source and purges its vectors", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/sources", AddSourceRequest{
				Title:         "paper",
				ExtractedText: "some research text",
			}))
			Expect(err).NotTo(HaveOccurred())
			src := decode[notebook.Source](resp)

			resp, err = server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ingest", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodDelete, "/v1/notebooks/"+nb.ID+"/sources/"+src.ID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+nb.ID+"/vectors/count", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(decode[CountResponse](resp).Chunks).To(BeZero())
		})

		It("refuses to remove a source through another notebook's path", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks", CreateNotebookRequest{Name: "other"}))
			Expect(err).NotTo(HaveOccurred())
			other := decode[notebook.Notebook](resp)

			resp, err = server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/sources", AddSourceRequest{
				Title:         "paper",
				ExtractedText: "some research text",
			}))
			Expect(err).NotTo(HaveOccurred())
			src := decode[notebook.Source](resp)

			resp, err = server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ingest", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = server.App().Test(httptest.NewRequest(http.MethodDelete, "/v1/notebooks/"+other.ID+"/sources/"+src.ID, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			// The source and its vectors are untouched.
			stored, err := driver.GetSource(context.Background(), src.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Deleted()).To(BeFalse())

			resp, err = server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+nb.ID+"/vectors/count", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(decode[CountResponse](resp).Chunks).To(Equal(1))
		})
	})

	Describe("search and ask", func() {
		var (
			nb         notebook.Notebook
			collection string
		)

		BeforeEach(func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks", CreateNotebookRequest{Name: "research"}))
			Expect(err).NotTo(HaveOccurred())
			nb = decode[notebook.Notebook](resp)

			collection = vector.CollectionName(nb.ID)
			Expect(index.EnsureCollection(context.Background(), collection)).To(Succeed())
			index.SetQueryResults(collection, []vector.Match{
				{
					Record: vector.Record{
						ID:   "c1",
						Text: "relevant text",
						Metadata: map[string]string{
							vector.MetaSourceID:   "src-1",
							vector.MetaChunkIndex: "0",
						},
					},
					Score: 0.9,
				},
			})
		})

		It("returns ranked search results", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+nb.ID+"/search?query=hello", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			out := decode[SearchResponse](resp)
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results[0].ChunkID).To(Equal("c1"))
		})

		It("requires a query parameter", func() {
			resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, "/v1/notebooks/"+nb.ID+"/search", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("answers questions with citations", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ask", AskRequest{Question: "what?"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			answer := decode[rag.Answer](resp)
			Expect(answer.Text).To(Equal("generated answer"))
			Expect(answer.Citations).To(HaveLen(1))
		})

		It("maps generation failures to 502", func() {
			gen.Err = rag.ErrGenerationFailed
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ask", AskRequest{Question: "what?"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("requires a question", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ask", AskRequest{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a negative ask limit", func() {
			resp, err := server.App().Test(jsonRequest(http.MethodPost, "/v1/notebooks/"+nb.ID+"/ask", AskRequest{
				Question: "what?",
				Limit:    -3,
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
