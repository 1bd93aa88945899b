package webhook_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/webhook"
)

const payload = `{"event":"order.updated","id":42}`

func deliver(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var _ = Describe("Sign", func() {
	It("matches a known HMAC-SHA256 vector", func() {
		// RFC 4231 test case 2.
		Expect(webhook.Sign("Jefe", []byte("what do ya want for nothing?"))).
			To(Equal("5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"))
	})
})

var _ = Describe("Verifier", func() {
	var (
		v       *webhook.Verifier
		handler http.Handler
		seen    string
	)

	BeforeEach(func() {
		seen = ""
		v = webhook.NewVerifier("s3cret", logger.Nop())
		handler = v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			seen = string(raw)
			_, _ = io.WriteString(w, "ok")
		}))
	})

	It("accepts a valid signature and passes the body through", func() {
		rec := deliver(handler, payload, webhook.Sign("s3cret", []byte(payload)))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("ok"))
		Expect(seen).To(Equal(payload))
	})

	It("ignores hex case", func() {
		sig := strings.ToUpper(webhook.Sign("s3cret", []byte(payload)))
		Expect(deliver(handler, payload, sig).Code).To(Equal(http.StatusOK))
	})

	It("rejects a signature for a different body", func() {
		rec := deliver(handler, payload, webhook.Sign("s3cret", []byte("other")))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(Equal("Invalid signature"))
		Expect(seen).To(BeEmpty())
	})

	It("rejects a missing or non-hex signature", func() {
		Expect(deliver(handler, payload, "").Code).To(Equal(http.StatusUnauthorized))
		Expect(deliver(handler, payload, "not-hex").Code).To(Equal(http.StatusUnauthorized))
	})

	It("accepts everything when no secret is configured", func() {
		open := webhook.NewVerifier("", logger.Nop())
		Expect(open.Enabled()).To(BeFalse())
		Expect(deliver(open.Middleware(webhook.Ack(logger.Nop())), payload, "").Code).To(Equal(http.StatusOK))
	})

	Describe("Ack", func() {
		It("responds ok", func() {
			rec := deliver(webhook.Ack(logger.Nop()), payload, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("ok"))
		})
	})
})
