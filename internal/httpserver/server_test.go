package httpserver_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/chama-gateway/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	Context("server creation", func() {
		DescribeTable("accepts valid addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop)
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.Addr()).To(Equal(addr))
			},
			Entry("host and port", "localhost:5000"),
			Entry("IP and port", "127.0.0.1:5000"),
			Entry("port only", ":5000"),
		)

		It("rejects invalid address", func() {
			srv, err := httpserver.New("invalid:host:port", noop)
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		})

		It("accepts options", func() {
			srv, err := httpserver.New(":5000", noop,
				httpserver.WithReadTimeout(time.Second),
				httpserver.WithWriteTimeout(20*time.Second),
				httpserver.WithShutdownTimeout(time.Second))
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})
	})

	Context("server lifecycle", func() {
		var (
			srv      *httpserver.Server
			listener net.Listener
			done     chan error
			finished chan struct{}
		)

		BeforeEach(func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})

			var err error
			srv, err = httpserver.New("127.0.0.1:0", handler)
			Expect(err).NotTo(HaveOccurred())

			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())

			done = make(chan error, 1)
			served := make(chan struct{})
			finished = served

			go func(s *httpserver.Server, l net.Listener, result chan<- error) {
				defer close(served)
				result <- s.Serve(l)
			}(srv, listener, done)
		})

		AfterEach(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
			Eventually(finished).Should(BeClosed())
		})

		It("handles requests", func() {
			resp, err := http.Get("http://" + listener.Addr().String())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))
		})

		It("shuts down gracefully and reports a clean exit", func() {
			Eventually(func() error {
				resp, err := http.Get("http://" + listener.Addr().String())
				if err == nil {
					resp.Body.Close()
				}
				return err
			}).Should(Succeed())

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			Expect(srv.Shutdown(ctx)).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
