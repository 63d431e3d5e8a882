package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/chama-gateway/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:     ":5000",
			Environment: config.EnvDev,
			Identity:    "Chama-LB-v1",
		},
		HealthCheck: config.HealthCheckConfig{Interval: "10s", Timeout: "2s", Path: "/health"},
		Proxy:       config.ProxyConfig{Timeout: "5s"},
		Services:    config.DefaultServices(),
		Logging:     config.LoggingConfig{Level: config.LogLevelInfo},
	}
}

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
		os.Unsetenv("SERVER_ADDRESS")
		os.Unsetenv("PROXY_TIMEOUT")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				configContent := `
server:
  address: ":8080"
  environment: "dev"
  identity: "Test-LB"

health_check:
  interval: "3s"
  timeout: "1s"
  path: "/healthz"

proxy:
  timeout: "4s"
  skip_unhealthy: true

services:
  - name: member
    instances: ["http://localhost:6001", "http://localhost:6011"]
    routes: ["/members"]
  - name: savings
    instances: ["http://localhost:6005"]
    routes: ["/savings", "/investments"]

logging:
  level: "debug"
`
				configPath := filepath.Join(tempDir, "config.yaml")
				Expect(os.WriteFile(configPath, []byte(configContent), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse services in declaration order", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Services).To(HaveLen(2))
				Expect(cfg.Services[0].Name).To(Equal("member"))
				Expect(cfg.Services[0].Instances).To(HaveLen(2))
				Expect(cfg.Services[1].Routes).To(Equal([]string{"/savings", "/investments"}))
			})

			It("should parse timings", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.HealthCheckInterval()).To(Equal(3 * time.Second))
				Expect(cfg.HealthCheckTimeout()).To(Equal(time.Second))
				Expect(cfg.ProxyTimeout()).To(Equal(4 * time.Second))
				Expect(cfg.HealthCheck.Path).To(Equal("/healthz"))
				Expect(cfg.Proxy.SkipUnhealthy).To(BeTrue())
			})

			It("should let environment variables override the file", func() {
				os.Setenv("SERVER_ADDRESS", ":9090")
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":9090"))
			})
		})

		Context("without a config file", func() {
			It("should fall back to the chama registry", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":5000"))
				Expect(cfg.Server.Identity).To(Equal("Chama-LB-v1"))
				Expect(cfg.HealthCheckInterval()).To(Equal(10 * time.Second))
				Expect(cfg.ProxyTimeout()).To(Equal(5 * time.Second))
				Expect(cfg.Proxy.SkipUnhealthy).To(BeFalse())
				Expect(cfg.Services).To(Equal(config.DefaultServices()))
			})

			It("should read timings from the environment", func() {
				os.Setenv("PROXY_TIMEOUT", "750ms")
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.ProxyTimeout()).To(Equal(750 * time.Millisecond))
			})
		})

		Context("with an invalid config file", func() {
			It("should reject overlapping route prefixes", func() {
				configContent := `
services:
  - name: member
    instances: ["http://localhost:6001"]
    routes: ["/members"]
  - name: loan
    instances: ["http://localhost:6003"]
    routes: ["/members"]
`
				Expect(os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)).To(Succeed())

				cfg, err := config.Load()
				Expect(err).To(HaveOccurred())
				Expect(cfg).To(BeNil())
			})
		})
	})

	Describe("Validate", func() {
		It("accepts the default configuration", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		DescribeTable("rejects invalid settings",
			func(mutate func(*config.Config)) {
				cfg := validConfig()
				mutate(cfg)
				Expect(cfg.Validate()).NotTo(Succeed())
			},
			Entry("unknown environment", func(c *config.Config) { c.Server.Environment = "qa" }),
			Entry("address without port", func(c *config.Config) { c.Server.Address = "localhost" }),
			Entry("empty identity", func(c *config.Config) { c.Server.Identity = "" }),
			Entry("bad interval", func(c *config.Config) { c.HealthCheck.Interval = "soon" }),
			Entry("zero probe timeout", func(c *config.Config) { c.HealthCheck.Timeout = "0s" }),
			Entry("relative health path", func(c *config.Config) { c.HealthCheck.Path = "health" }),
			Entry("bad proxy timeout", func(c *config.Config) { c.Proxy.Timeout = "" }),
			Entry("negative sample bound", func(c *config.Config) { c.Metrics.MaxSamples = -1 }),
			Entry("unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }),
			Entry("no services", func(c *config.Config) { c.Services = nil }),
			Entry("service without instances", func(c *config.Config) { c.Services[0].Instances = nil }),
			Entry("instance with ftp scheme", func(c *config.Config) { c.Services[0].Instances = []string{"ftp://localhost:21"} }),
			Entry("route without leading slash", func(c *config.Config) { c.Services[0].Routes = []string{"members"} }),
			Entry("duplicate service name", func(c *config.Config) { c.Services[1].Name = c.Services[0].Name }),
		)
	})
})
