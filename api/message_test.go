package api

import (
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/broadcast"
)

var _ = DescribeTable("parseMessage",
	func(body string, expected messageRequest) {
		Expect(parseMessage([]byte(body))).To(Equal(expected))
	},
	Entry("json text", `{"text":"hello"}`, messageRequest{Text: "hello"}),
	Entry("json text and session", `{"text":"hello","session":"s1"}`, messageRequest{Text: "hello", Session: "s1"}),
	Entry("urlencoded form", "text=hello+there&session=s2", messageRequest{Text: "hello there", Session: "s2"}),
	Entry("json with non-string text", `{"text":42}`, messageRequest{}),
	Entry("json with empty text", `{"text":""}`, messageRequest{}),
	Entry("empty body", "", messageRequest{}),
	Entry("plain text is not a message", "hello", messageRequest{}),
	Entry("whitespace text is returned as-is", `{"text":"  "}`, messageRequest{Text: "  "}),
)

var _ = Describe("sessionID", func() {
	resolve := func(target string, header string, fallback string) string {
		app := fiber.New()
		var got string
		app.Get("/", func(c *fiber.Ctx) error {
			got = sessionID(c, fallback)
			return nil
		})

		req := httptest.NewRequest("GET", target, nil)
		if header != "" {
			req.Header.Set(SessionHeader, header)
		}
		_, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return got
	}

	It("prefers the query parameter", func() {
		Expect(resolve("/?session=q", "h", "b")).To(Equal("q"))
	})

	It("falls back to the header", func() {
		Expect(resolve("/", "h", "b")).To(Equal("h"))
	})

	It("falls back to the body field", func() {
		Expect(resolve("/", "", "b")).To(Equal("b"))
	})

	It("uses the default session otherwise", func() {
		Expect(resolve("/?session=%20", "", "")).To(Equal(broadcast.DefaultSession))
	})
})
