package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/chama-gateway/internal/backend"
	apperrors "github.com/angeloszaimis/chama-gateway/pkg/errors"
)

var _ = Describe("Forwarder", func() {
	var (
		fwd      *backend.Forwarder
		server   *httptest.Server
		received *http.Request
		gotBody  []byte
	)

	BeforeEach(func() {
		fwd = backend.NewForwarder(time.Second)
		received = nil
		gotBody = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r
			gotBody, _ = io.ReadAll(r.Body)

			switch r.URL.Path {
			case "/contributions":
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Backend", "contribution")
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"success":true}`))
			case "/slow":
				time.Sleep(300 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			default:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"member not found"}`))
			}
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should pass a successful response through unchanged", func() {
		header := http.Header{}
		header.Set("Content-Type", "application/json")

		res, err := fwd.Forward(context.Background(), server.URL+"/contributions", http.MethodPost, header, []byte(`{"amount":500}`))

		Expect(err).NotTo(HaveOccurred())
		Expect(res.StatusCode).To(Equal(http.StatusCreated))
		Expect(string(res.Body)).To(Equal(`{"success":true}`))
		Expect(res.Header.Get("X-Backend")).To(Equal("contribution"))
		Expect(received.Method).To(Equal(http.MethodPost))
		Expect(string(gotBody)).To(Equal(`{"amount":500}`))
	})

	It("should pass backend error statuses through", func() {
		res, err := fwd.Forward(context.Background(), server.URL+"/members/99", http.MethodGet, http.Header{}, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.StatusCode).To(Equal(http.StatusNotFound))
		Expect(string(res.Body)).To(Equal(`{"error":"member not found"}`))
		Expect(res.Header.Get("Content-Type")).To(Equal("application/json"))
	})

	It("should forward the query string", func() {
		_, err := fwd.Forward(context.Background(), server.URL+"/members?page=2", http.MethodGet, http.Header{}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(received.URL.RawQuery).To(Equal("page=2"))
	})

	It("should strip hop headers and replay the rest", func() {
		header := http.Header{}
		header.Set("Host", "gateway.local:5000")
		header.Set("Content-Length", "999")
		header.Set("Authorization", "Bearer abc")

		_, err := fwd.Forward(context.Background(), server.URL+"/contributions", http.MethodPost, header, []byte("x"))

		Expect(err).NotTo(HaveOccurred())
		Expect(received.Host).NotTo(Equal("gateway.local:5000"))
		Expect(received.ContentLength).To(Equal(int64(1)))
		Expect(received.Header.Get("Authorization")).To(Equal("Bearer abc"))
		Expect(header.Get("Host")).To(Equal("gateway.local:5000"), "caller header must not be mutated")
	})

	Describe("request ids", func() {
		It("should generate one when the caller sent none", func() {
			res, err := fwd.Forward(context.Background(), server.URL+"/contributions", http.MethodGet, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequestID).NotTo(BeEmpty())
			Expect(received.Header.Get(backend.RequestIDHeader)).To(Equal(res.RequestID))
		})

		It("should keep the caller's id", func() {
			header := http.Header{}
			header.Set(backend.RequestIDHeader, "req-42")
			res, err := fwd.Forward(context.Background(), server.URL+"/contributions", http.MethodGet, header, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequestID).To(Equal("req-42"))
			Expect(received.Header.Get(backend.RequestIDHeader)).To(Equal("req-42"))
		})
	})

	Describe("transport failures", func() {
		assertSynthetic := func(res *backend.Response, err error) {
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, apperrors.ErrBackendTransport)).To(BeTrue())
			Expect(res).NotTo(BeNil())
			Expect(res.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(res.Header).To(BeEmpty())

			var payload map[string]string
			Expect(json.Unmarshal(res.Body, &payload)).To(Succeed())
			Expect(payload).To(HaveKey("error"))
			Expect(payload["error"]).NotTo(BeEmpty())
		}

		It("should synthesize a 503 when the connection is refused", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			deadURL := dead.URL
			dead.Close()

			res, err := fwd.Forward(context.Background(), deadURL+"/members", http.MethodGet, http.Header{}, nil)
			assertSynthetic(res, err)
		})

		It("should synthesize a 503 on timeout", func() {
			fwd = backend.NewForwarder(50 * time.Millisecond)
			res, err := fwd.Forward(context.Background(), server.URL+"/slow", http.MethodGet, http.Header{}, nil)
			assertSynthetic(res, err)
		})

		It("should synthesize a 503 for an unusable target", func() {
			res, err := fwd.Forward(context.Background(), "http://[::1", http.MethodGet, http.Header{}, nil)
			assertSynthetic(res, err)
		})
	})
})
