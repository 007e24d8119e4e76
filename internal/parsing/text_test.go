package parsing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseLines", func() {
	var (
		lines []string
		items []Item
	)

	JustBeforeEach(func() {
		items = parseLines(lines)
	})

	When("lines carry plain item prices", func() {
		BeforeEach(func() {
			lines = []string{
				"ｲｵﾝ ﾁﾊﾞﾁｭｳｵｳ店",
				"2026年02月12日(木) 12:26",
				"ﾄｯﾌﾟﾊﾞﾘｭ ﾐﾈﾗﾙｳｫｰﾀｰ      ¥88※",
				"ﾅｯﾄｳ 3P          \\\\98",
				"国産 豚こま　　1,280*",
				"TEL  043-212-6000",
			}
		})

		It("extracts each item", func() {
			Expect(items).To(Equal([]Item{
				{Name: "ﾄｯﾌﾟﾊﾞﾘｭ ﾐﾈﾗﾙｳｫｰﾀｰ", UnitPrice: 88, Quantity: 1},
				{Name: "ﾅｯﾄｳ 3P", UnitPrice: 98, Quantity: 1},
				{Name: "国産 豚こま", UnitPrice: 1280, Quantity: 1},
			}))
		})
	})

	When("a discount line follows an item", func() {
		BeforeEach(func() {
			lines = []string{
				"牛乳             200",
				"値引             -50",
			}
		})

		It("applies the discount to that item", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].UnitPrice).To(Equal(200))
			Expect(items[0].Discount).To(Equal(50))
		})
	})

	When("a discount line has no preceding item", func() {
		BeforeEach(func() {
			lines = []string{
				"値引             -50",
				"牛乳             200",
			}
		})

		It("drops the discount", func() {
			Expect(items).To(Equal([]Item{{Name: "牛乳", UnitPrice: 200, Quantity: 1}}))
		})
	})

	When("a coupon line is separated from its item by other text", func() {
		BeforeEach(func() {
			lines = []string{
				"ﾖｰｸﾞﾙﾄ           158",
				"ﾄﾞﾚｯｼﾝｸﾞ          298",
				"  (2ｺX149)",
				"ｸｰﾎﾟﾝ            -30",
			}
		})

		It("applies it to the last accepted item", func() {
			Expect(items).To(HaveLen(2))
			Expect(items[0].Discount).To(BeZero())
			Expect(items[1].Discount).To(Equal(30))
		})
	})

	When("lines are totals, tax or payment", func() {
		BeforeEach(func() {
			lines = []string{
				"小計             1,234",
				"合計            ¥1,234",
				"(内税対象額       1,234)",
				"WAON支払         1,234",
				"お預り           2,000",
				"お釣               766",
				"お買上点数          3",
				"ポイント残高       120",
			}
		})

		It("discards them", func() {
			Expect(items).To(BeEmpty())
		})
	})

	When("lines carry printer control markers", func() {
		BeforeEach(func() {
			lines = []string{
				"PrintBitmap(1, 'logo.bmp')  ｲｵﾝ  100",
				"PrintBarCode('2026021212261600', 3)",
				"ﾊﾞﾅﾅ          ¥98",
			}
		})

		It("skips them entirely", func() {
			Expect(items).To(Equal([]Item{{Name: "ﾊﾞﾅﾅ", UnitPrice: 98, Quantity: 1}}))
		})
	})

	When("a bold line holds an item", func() {
		BeforeEach(func() {
			lines = []string{
				"PrintDouble('ｱｲｽｸﾘｰﾑ BOX        \\\\398※', 2)",
			}
		})

		It("extracts name and price from inside the marker", func() {
			Expect(items).To(Equal([]Item{{Name: "ｱｲｽｸﾘｰﾑ BOX", UnitPrice: 398, Quantity: 1}}))
		})
	})

	When("bold lines are headers or totals", func() {
		BeforeEach(func() {
			lines = []string{
				"PrintDouble('ｲｵﾝ ﾁﾊﾞﾁｭｳｵｳ店', 2)",
				"PrintDouble('2月12日 ﾎﾟｲﾝﾄ5倍', 2)",
				"PrintDouble('合計          \\\\1,234', 2)",
			}
		})

		It("does not absorb them as items", func() {
			Expect(items).To(BeEmpty())
		})
	})

	When("the price is zero or missing", func() {
		BeforeEach(func() {
			lines = []string{
				"ﾚｼﾞﾌﾞｸﾛ          0",
				"ｻｰﾋﾞｽ品",
			}
		})

		It("discards the line", func() {
			Expect(items).To(BeEmpty())
		})
	})
})
