package servecmder

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer l.Close()
	return l.Addr().String()
}

var _ = Describe("Serve Command", func() {
	It("serves health checks until the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addr := freeAddr()
		cmd := NewServeCmd()
		cmd.SetArgs([]string{"--listen", addr})
		cmd.SetErr(&bytes.Buffer{})

		done := make(chan error, 1)
		go func() { done <- cmd.ExecuteContext(ctx) }()

		Eventually(func() int {
			resp, err := http.Get("http://" + addr + "/health")
			if err != nil {
				return 0
			}
			resp.Body.Close()
			return resp.StatusCode
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(http.StatusOK))

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	})

	It("loads the listen address from a config file", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addr := freeAddr()
		path := filepath.Join(GinkgoT().TempDir(), "router.toml")
		Expect(os.WriteFile(path, []byte(`listen = "`+addr+`"`+"\nstrategy = \"race\"\n"), 0o600)).To(Succeed())

		cmd := NewServeCmd()
		cmd.SetArgs([]string{"--config", path})
		cmd.SetErr(&bytes.Buffer{})

		done := make(chan error, 1)
		go func() { done <- cmd.ExecuteContext(ctx) }()

		Eventually(func() error {
			resp, err := http.Get("http://" + addr + "/health")
			if err == nil {
				resp.Body.Close()
			}
			return err
		}, 5*time.Second, 50*time.Millisecond).Should(Succeed())

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	})

	It("rejects an invalid config file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "router.toml")
		Expect(os.WriteFile(path, []byte(`strategy = "vote"`), 0o600)).To(Succeed())

		cmd := NewServeCmd()
		cmd.SetArgs([]string{"--config", path})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetOut(&bytes.Buffer{})

		Expect(cmd.ExecuteContext(context.Background())).NotTo(Succeed())
	})
})
