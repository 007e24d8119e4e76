package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/image/bmp"
)

func bmpBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	Expect(bmp.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func detailPayloadJSON(lineItems ...any) []byte {
	data, err := json.Marshal(map[string]any{
		"results": map[string]any{
			"DigitalReceipt": map[string]any{
				"ReceiptID": "r1",
				"Transaction": map[string]any{
					"ReceiptImage":      map[string]any{"ReceiptLine": []string{"ｲｵﾝ ﾃｽﾄ店", "牛乳  ¥200"}},
					"RetailTransaction": map[string]any{"LineItem": lineItems},
				},
			},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return data
}

var _ = Describe("DecodeDetail", func() {
	It("reads printable lines and embedded images", func() {
		logo := bmpBytes()
		payload := detailPayloadJSON(
			map[string]any{"Sale": map[string]any{"ItemDescription": "牛乳"}},
			map[string]any{"Advertising": map[string]any{
				"AdvertisingID": "AD01",
				"ImageData":     base64.StdEncoding.EncodeToString(logo),
			}},
		)

		detail, err := DecodeDetail("listing-id", payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.ReceiptID).To(Equal("r1"))
		Expect(detail.Lines).To(Equal([]string{"ｲｵﾝ ﾃｽﾄ店", "牛乳  ¥200"}))
		Expect(detail.Images).To(HaveKeyWithValue("AD01", logo))
		Expect([]byte(detail.Raw)).To(MatchJSON(payload))
	})

	It("accepts a single line item instead of an array", func() {
		payload := []byte(`{"results": {"DigitalReceipt": {"Transaction": {"RetailTransaction": {"LineItem":
			{"Advertising": {"AdvertisingID": "AD01", "ImageData": "` + base64.StdEncoding.EncodeToString([]byte("x")) + `"}}}}}}}`)

		detail, err := DecodeDetail("r2", payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.ReceiptID).To(Equal("r2"))
		Expect(detail.Images).To(HaveKey("AD01"))
	})

	It("skips images that are not valid base64", func() {
		payload := detailPayloadJSON(map[string]any{"Advertising": map[string]any{
			"AdvertisingID": "AD01",
			"ImageData":     "not base64!",
		}})

		detail, err := DecodeDetail("r1", payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Images).To(BeEmpty())
	})

	It("returns an empty detail for an unexpected shape", func() {
		detail, err := DecodeDetail("r3", []byte(`{"results": []}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.ReceiptID).To(Equal("r3"))
		Expect(detail.Lines).To(BeEmpty())
	})

	It("rejects invalid JSON", func() {
		_, err := DecodeDetail("r4", []byte(`{"results":`))
		Expect(err).To(MatchError(ContainSubstring("invalid detail payload for receipt r4")))
	})
})

var _ = Describe("ReadBundle", func() {
	It("decodes the summary and keeps the payload raw", func() {
		b, err := ReadBundle(strings.NewReader(`{"summary": {"receipt_id": "r1", "store_name": "ﾃｽﾄ", "datetime": "2025-06-09T10:00:00"}, "payload": {"results": {}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Summary.ReceiptID).To(Equal("r1"))
		Expect(b.Summary.StoreName).To(Equal("ﾃｽﾄ"))
		Expect([]byte(b.Payload)).To(MatchJSON(`{"results": {}}`))
	})

	It("defaults a missing payload to an empty object", func() {
		b, err := ReadBundle(strings.NewReader(`{"summary": {"receipt_id": "r1"}}`))
		Expect(err).NotTo(HaveOccurred())

		detail, err := b.Detail()
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.ReceiptID).To(Equal("r1"))
	})

	It("rejects a bundle without a receipt id", func() {
		_, err := ReadBundle(strings.NewReader(`{"summary": {}}`))
		Expect(err).To(MatchError("bundle has no receipt id"))
	})

	It("rejects malformed input", func() {
		_, err := ReadBundle(strings.NewReader(`nope`))
		Expect(err).To(MatchError(ContainSubstring("decoding bundle")))
	})
})
