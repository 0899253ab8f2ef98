package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func errorCode(rec *httptest.ResponseRecorder) string {
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
	return env.Error.Code
}

var _ = Describe("TrustedProxies", func() {
	request := func(peer, xff string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = peer + ":51234"
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		return req
	}

	It("ignores forwarding headers from untrusted peers", func() {
		var none TrustedProxies
		req := request("203.0.113.7", "10.0.0.1")
		req.Header.Set("X-Real-IP", "198.51.100.2")
		Expect(none.ClientIP(req)).To(Equal("203.0.113.7"))
	})

	It("takes the nearest untrusted hop behind a trusted proxy", func() {
		tp, err := ParseTrustedProxies("10.0.0.0/8, 192.0.2.1")
		Expect(err).NotTo(HaveOccurred())

		Expect(tp.ClientIP(request("192.0.2.1", "198.51.100.9, 203.0.113.7, 10.1.2.3"))).To(Equal("203.0.113.7"))
		Expect(tp.ClientIP(request("10.9.9.9", ""))).To(Equal("10.9.9.9"))
	})

	It("falls back to X-Real-IP behind a trusted proxy", func() {
		tp, err := ParseTrustedProxies("192.0.2.1")
		Expect(err).NotTo(HaveOccurred())
		req := request("192.0.2.1", "")
		req.Header.Set("X-Real-IP", "198.51.100.2")
		Expect(tp.ClientIP(req)).To(Equal("198.51.100.2"))
	})

	It("rejects malformed entries", func() {
		_, err := ParseTrustedProxies("10.0.0.0/8, not-an-ip")
		Expect(err).To(MatchError(ContainSubstring("not-an-ip")))
	})
})

var _ = Describe("RateLimiter", func() {
	send := func(h http.Handler, ip string, forwarded ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		if len(forwarded) > 0 {
			req.Header.Set("X-Forwarded-For", forwarded[0])
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	It("rejects the request after the burst with 429 and Retry-After", func() {
		h := NewRateLimiter(2, time.Minute, TrustedProxies{}).Handler(okHandler)

		Expect(send(h, "192.0.2.1").Code).To(Equal(http.StatusOK))
		Expect(send(h, "192.0.2.1").Code).To(Equal(http.StatusOK))

		rec := send(h, "192.0.2.1")
		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		Expect(rec.Header().Get("Retry-After")).NotTo(BeEmpty())
		Expect(errorCode(rec)).To(Equal("RATE_LIMITED"))
	})

	It("keeps a separate bucket per client", func() {
		h := NewRateLimiter(1, time.Minute, TrustedProxies{}).Handler(okHandler)

		Expect(send(h, "192.0.2.1").Code).To(Equal(http.StatusOK))
		Expect(send(h, "192.0.2.1").Code).To(Equal(http.StatusTooManyRequests))
		Expect(send(h, "192.0.2.2").Code).To(Equal(http.StatusOK))
	})

	It("cannot be dodged by rotating X-Forwarded-For from one peer", func() {
		h := NewRateLimiter(5, time.Minute, TrustedProxies{}).Handler(okHandler)

		allowed := 0
		for i := 0; i < 100; i++ {
			if send(h, "203.0.113.7", fmt.Sprintf("10.0.0.%d", i)).Code == http.StatusOK {
				allowed++
			}
		}
		Expect(allowed).To(Equal(5))
	})

	It("keys on the forwarded client behind a trusted proxy", func() {
		tp, err := ParseTrustedProxies("192.0.2.1")
		Expect(err).NotTo(HaveOccurred())
		h := NewRateLimiter(1, time.Minute, tp).Handler(okHandler)

		Expect(send(h, "192.0.2.1", "203.0.113.7").Code).To(Equal(http.StatusOK))
		Expect(send(h, "192.0.2.1", "203.0.113.7").Code).To(Equal(http.StatusTooManyRequests))
		Expect(send(h, "192.0.2.1", "203.0.113.8").Code).To(Equal(http.StatusOK))
	})
})

var _ = Describe("CORS", func() {
	h := CORS("http://localhost:5173, https://app.example.com/")(okHandler)

	It("answers a preflight from an allowed origin", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/findings", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("passes foreign origins through without CORS headers", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/findings", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})

var _ = Describe("RequestID", func() {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chiMiddleware.GetReqID(r.Context())
	}))

	It("keeps the caller's id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(seen).To(Equal("abc-123"))
		Expect(rec.Header().Get(RequestIDHeader)).To(Equal("abc-123"))
	})

	It("mints one when absent", func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).To(HaveLen(36))
		Expect(rec.Header().Get(RequestIDHeader)).To(Equal(seen))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a generic 500", func() {
		h := RecoveryMiddleware(testLogger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("dsn=postgres://admin:hunter2@db")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).NotTo(ContainSubstring("hunter2"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("masks sensitive keys at any depth", func() {
		out := filterSensitiveBody([]byte(`{"username":"alice","password":"s3cret","nested":{"bindDN":"cn=svc","items":[{"api_key":"k"}]}}`))

		Expect(out).To(ContainSubstring(`"username":"alice"`))
		Expect(out).NotTo(ContainSubstring("s3cret"))
		Expect(out).NotTo(ContainSubstring("cn=svc"))
		Expect(out).To(ContainSubstring(`"api_key":"[FILTERED]"`))
	})

	It("masks cookies in headers", func() {
		h := http.Header{}
		h.Set("Cookie", "redteam.sid=abc")
		h.Set("Accept", "application/json")

		filtered := filterSensitiveHeaders(h)
		Expect(filtered["Cookie"]).To(Equal("[FILTERED]"))
		Expect(filtered["Accept"]).To(Equal("application/json"))
	})

	It("leaves the request body intact for the handler", func() {
		var got []byte
		h := LoggingMiddleware(testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))

		body := `{"title":"SQLi","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/findings", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(string(got)).To(Equal(body))
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(Equal(`{"ok":true}`))
	})
})
