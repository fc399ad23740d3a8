package odoorpc_test

import (
	"context"
	"fmt"

	. "github.com/averat/odoorpc"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Endpoint", func() {
	var root Endpoint

	BeforeEach(func() {
		conn, err := NewConnector("odoo.example.org")
		Expect(err).ShouldNot(HaveOccurred())

		root = conn.JSON()
	})

	Describe("func Segment()", func() {
		It("accumulates one path segment per call", func() {
			e := root.
				Segment("web").
				Segment("dataset").
				Segment("call")

			Expect(e.Path()).To(Equal("web/dataset/call"))
		})

		It("leaves the receiver unchanged", func() {
			e := root.Segment("web")
			e.Segment("dataset")

			Expect(e.Path()).To(Equal("web"))
		})

		DescribeTable(
			"it panics when the segment is invalid",
			func(segment string) {
				Expect(func() {
					root.Segment(segment)
				}).To(PanicWith(fmt.Sprintf(
					"invalid endpoint segment (%q): segments must be non-empty and must not contain slashes",
					segment,
				)))
			},
			Entry("empty", ""),
			Entry("slash-delimited path", "web/dataset"),
		)
	})

	Describe("func At()", func() {
		DescribeTable(
			"it addresses the same endpoint as the equivalent segment chain",
			func(path string) {
				Expect(root.At(path).Path()).To(Equal(
					root.
						Segment("web").
						Segment("dataset").
						Segment("call").
						Path(),
				))
			},
			Entry("bare", "web/dataset/call"),
			Entry("leading slash", "/web/dataset/call"),
			Entry("trailing slash", "web/dataset/call/"),
			Entry("both", "/web/dataset/call/"),
		)

		It("extends a non-root endpoint", func() {
			e := root.Segment("web").At("dataset/call")
			Expect(e.Path()).To(Equal("web/dataset/call"))
		})

		It("returns the endpoint unchanged when the path is empty", func() {
			e := root.Segment("web")
			Expect(e.At("").Path()).To(Equal("web"))
			Expect(e.At("/").Path()).To(Equal("web"))
		})
	})

	Describe("func Path()", func() {
		It("is empty for the root endpoint", func() {
			Expect(root.Path()).To(Equal(""))
		})
	})

	Describe("func Invoke()", func() {
		It("panics when the parameters are not a JSON object", func() {
			Expect(func() {
				root.At("web/dataset/call").Invoke(context.Background(), []int{1, 2, 3})
			}).To(PanicWith(
				"unable to invoke JSON-RPC endpoint (/web/dataset/call): call parameters must be a JSON object",
			))
		})
	})
})
