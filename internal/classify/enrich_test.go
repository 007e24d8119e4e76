package classify

import (
	"context"
	"errors"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

type mockSearcher struct {
	snippets []string
	err      error
	queries  []string
}

func (m *mockSearcher) Search(_ context.Context, query string) ([]string, error) {
	m.queries = append(m.queries, query)
	return m.snippets, m.err
}

func (m *mockSearcher) Close() error {
	return nil
}

var _ = Describe("Enricher", func() {
	var (
		ctx      context.Context
		rules    Rules
		searcher *mockSearcher
		enricher *Enricher
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		rules, err = DefaultRules()
		Expect(err).NotTo(HaveOccurred())
		searcher = &mockSearcher{}
		enricher = NewEnricher(searcher, rules)
	})

	It("queries with the product name and lookup suffix", func() {
		searcher.snippets = []string{"something"}
		enricher.Enrich(ctx, "ｶｯﾌﾟﾒﾝ")
		Expect(searcher.queries).To(ConsistOf("ｶｯﾌﾟﾒﾝ 商品情報 内容量"))
	})

	It("extracts content amount and manufacturer", func() {
		searcher.snippets = []string{
			"人気の商品です。",
			"内容量 1.5L 製造: 山田乳業、東京都",
		}
		result, ok := enricher.Enrich(ctx, "ナゾノドリンク")
		Expect(ok).To(BeTrue())
		Expect(result.ContentAmount).NotTo(BeNil())
		Expect(*result.ContentAmount).To(Equal(1.5))
		Expect(result.ContentUnit).To(Equal("L"))
		Expect(result.Manufacturer).To(Equal("山田乳業"))
		Expect(result.Classified()).To(BeFalse())
		Expect(result.IsFood).To(BeTrue())
	})

	It("takes the food flag from the non-food keywords", func() {
		searcher.snippets = []string{"内容量 12個"}
		result, ok := enricher.Enrich(ctx, "ﾏｽｸ ﾌﾂｳ")
		Expect(ok).To(BeTrue())
		Expect(result.IsFood).To(BeFalse())
		Expect(*result.ContentAmount).To(Equal(12.0))
		Expect(result.ContentUnit).To(Equal("個"))
	})

	It("leaves fields empty when snippets carry nothing useful", func() {
		searcher.snippets = []string{"no details here"}
		result, ok := enricher.Enrich(ctx, "x")
		Expect(ok).To(BeTrue())
		Expect(result.ContentAmount).To(BeNil())
		Expect(result.Manufacturer).To(BeEmpty())
	})

	It("misses when the search fails", func() {
		searcher.err = errors.New("quota exceeded")
		_, ok := enricher.Enrich(ctx, "x")
		Expect(ok).To(BeFalse())
	})

	It("misses when nothing is found", func() {
		_, ok := enricher.Enrich(ctx, "x")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("CustomSearch", func() {
	var server *ghttp.Server

	BeforeEach(func() {
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires credentials", func() {
		_, err := NewCustomSearch("", "cx", "")
		Expect(err).To(HaveOccurred())
		_, err = NewCustomSearch("key", "", "")
		Expect(err).To(HaveOccurred())
	})

	It("returns result snippets", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodGet, "/customsearch/v1"),
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"title": "a", "snippet": "内容量 500ml"},
					{"title": "b"},
					{"title": "c", "snippet": "メーカー: ﾃｽﾄ"},
				},
			}),
		))

		searcher, err := NewCustomSearch("key", "engine", server.URL()+"/")
		Expect(err).NotTo(HaveOccurred())
		defer searcher.Close()

		snippets, err := searcher.Search(context.Background(), "牛乳")
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(Equal([]string{"内容量 500ml", "メーカー: ﾃｽﾄ"}))

		query := server.ReceivedRequests()[0].URL.Query()
		Expect(query.Get("q")).To(Equal("牛乳"))
		Expect(query.Get("cx")).To(Equal("engine"))
		Expect(query.Get("num")).To(Equal("3"))
		Expect(query.Get("lr")).To(Equal("lang_ja"))
	})

	It("returns an error on API failure", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, `{"error": {"code": 403, "message": "denied"}}`))

		searcher, err := NewCustomSearch("key", "engine", server.URL()+"/")
		Expect(err).NotTo(HaveOccurred())

		_, err = searcher.Search(context.Background(), "牛乳")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Ollama", func() {
	var server *ghttp.Server

	BeforeEach(func() {
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("asks the chat API about the product", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.VerifyContentType("application/json"),
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"message": map[string]string{"role": "assistant", "content": "内容量: 200g\nメーカー: 森永\n"},
				"done":    true,
			}),
		))

		ollama, err := NewOllama(server.URL(), "test-model")
		Expect(err).NotTo(HaveOccurred())

		snippets, err := ollama.Search(context.Background(), "ﾁｮｺ"+querySuffix)
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(HaveLen(1))

		result := extractDetails(snippets[0], true)
		Expect(*result.ContentAmount).To(Equal(200.0))
		Expect(result.ContentUnit).To(Equal("g"))
		Expect(result.Manufacturer).To(Equal("森永"))
	})

	It("returns an error on a non-200 status", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "boom"))

		ollama, err := NewOllama(server.URL(), "")
		Expect(err).NotTo(HaveOccurred())

		_, err = ollama.Search(context.Background(), "x")
		Expect(err).To(MatchError(ContainSubstring("status 500")))
	})
})

var _ = Describe("Gemini", func() {
	var server *ghttp.Server

	BeforeEach(func() {
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := NewGemini("", "", "")
		Expect(err).To(MatchError("gemini api key is required"))
	})

	It("asks the model about the product", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(HaveSuffix("models/test-model:generateContent"))
				body, err := io.ReadAll(r.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("商品名: ﾁｮｺ"))
				Expect(string(body)).NotTo(ContainSubstring(querySuffix))
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": "内容量: 200g\nメーカー: 森永"}},
					},
				}},
			}),
		))

		gemini, err := NewGemini("key", "test-model", server.URL())
		Expect(err).NotTo(HaveOccurred())
		defer gemini.Close()

		snippets, err := gemini.Search(context.Background(), "ﾁｮｺ"+querySuffix)
		Expect(err).NotTo(HaveOccurred())
		Expect(snippets).To(Equal([]string{"内容量: 200g\nメーカー: 森永"}))
	})

	It("returns an error when the API rejects the request", func() {
		server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "message": "bad request", "status": "INVALID_ARGUMENT"},
		}))

		gemini, err := NewGemini("key", "test-model", server.URL())
		Expect(err).NotTo(HaveOccurred())
		defer gemini.Close()

		_, err = gemini.Search(context.Background(), "ﾁｮｺ")
		Expect(err).To(MatchError(ContainSubstring("generating content")))
	})
})
