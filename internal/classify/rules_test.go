package classify

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Rules", func() {
	var rules Rules

	BeforeEach(func() {
		var err error
		rules, err = DefaultRules()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("DefaultRules", func() {
		It("loads the built-in table", func() {
			Expect(rules.Len()).To(BeNumerically(">", 50))
		})
	})

	Describe("Match", func() {
		It("returns the full template of the first matching rule", func() {
			result, ok := rules.Match("明治おいしい牛乳")
			Expect(ok).To(BeTrue())
			Expect(result.Category).To(Equal("飲料"))
			Expect(result.Subcategory).To(Equal("牛乳・乳飲料"))
			Expect(result.StorageClass).To(Equal(Refrigerated))
			Expect(result.ShelfLifeDays).NotTo(BeNil())
			Expect(*result.ShelfLifeDays).To(Equal(7))
			Expect(result.IsFood).To(BeTrue())
		})

		It("matches half-width katakana keywords", func() {
			result, ok := rules.Match("ﾀﾏｺﾞ 10ｺ")
			Expect(ok).To(BeTrue())
			Expect(result.Category).To(Equal("卵"))
		})

		It("marks household goods as non-food", func() {
			result, ok := rules.Match("ｴﾘｴｰﾙ ﾃｨｯｼｭ 5P")
			Expect(ok).To(BeTrue())
			Expect(result.Category).To(Equal("日用品"))
			Expect(result.IsFood).To(BeFalse())
			Expect(result.ShelfLifeDays).To(BeNil())
		})

		It("files vinegar only on vinegar keywords", func() {
			result, ok := rules.Match("ﾐﾂｶﾝ 穀物酢")
			Expect(ok).To(BeTrue())
			Expect(result.Subcategory).To(Equal("酢"))

			for _, name := range []string{"ﾊﾟｽﾀｿｰｽ", "ｼﾞｭｰｽ ｵﾚﾝｼﾞ", "ｽﾅｯｸ ﾐｯｸｽ"} {
				result, _ := rules.Match(name)
				Expect(result.Subcategory).NotTo(Equal("酢"), name)
			}
		})

		It("misses names without a keyword", func() {
			_, ok := rules.Match("ナゾノシナモノ")
			Expect(ok).To(BeFalse())
		})

		It("does not share pointers with the table", func() {
			first, _ := rules.Match("牛乳")
			*first.ShelfLifeDays = 999

			second, _ := rules.Match("牛乳")
			Expect(*second.ShelfLifeDays).To(Equal(7))
		})
	})

	Describe("Fallback", func() {
		It("is ambient food for unknown names", func() {
			result := rules.Fallback("ナゾノシナモノ")
			Expect(result.Classified()).To(BeFalse())
			Expect(result.StorageClass).To(Equal(Ambient))
			Expect(result.IsFood).To(BeTrue())
		})

		It("uses the non-food keywords", func() {
			Expect(rules.Fallback("ﾄｲﾚ ｸｲｯｸﾙ").IsFood).To(BeFalse())
		})
	})

	Describe("ParseRules", func() {
		It("keeps document order", func() {
			parsed, err := ParseRules([]byte(`
rules:
  - keywords: ["ﾊﾟﾝ"]
    category: first
  - keywords: ["ﾒﾛﾝﾊﾟﾝ"]
    category: second
`))
			Expect(err).NotTo(HaveOccurred())
			result, ok := parsed.Match("ﾒﾛﾝﾊﾟﾝ")
			Expect(ok).To(BeTrue())
			Expect(result.Category).To(Equal("first"))
			Expect(result.StorageClass).To(Equal(Ambient))
		})

		DescribeTable("rejects invalid tables",
			func(doc string) {
				_, err := ParseRules([]byte(doc))
				Expect(err).To(HaveOccurred())
			},
			Entry("missing keywords", "rules:\n  - category: x\n"),
			Entry("empty keyword", "rules:\n  - keywords: [\"\"]\n"),
			Entry("unknown storage", "rules:\n  - keywords: [a]\n    storage: cellar\n"),
			Entry("non-positive shelf life", "rules:\n  - keywords: [a]\n    shelf_life_days: 0\n"),
			Entry("unknown field", "rules:\n  - keywords: [a]\n    colour: red\n"),
		)
	})

	Describe("LoadRules", func() {
		It("reads a rule file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "rules.yaml")
			Expect(os.WriteFile(path, []byte("rules:\n  - keywords: [ｺﾒ]\n    category: 米\n    shelf_life_days: 365\nnon_food: [ﾏｽｸ]\n"), 0644)).To(Succeed())

			loaded, err := LoadRules(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Len()).To(Equal(1))
			Expect(loaded.IsFood("ﾏｽｸ 30ﾏｲ")).To(BeFalse())
		})

		It("returns an error for a missing file", func() {
			_, err := LoadRules(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})
	})
})
