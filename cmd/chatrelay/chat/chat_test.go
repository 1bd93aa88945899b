package chatcmder_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/broadcast"
	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// recordingPublisher keeps every published turn event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
}

func (p *recordingPublisher) PublishTurn(_ context.Context, e *eventstream.TurnCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) sessions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Source.SessionID)
	}
	return out
}

func deltaLine(text string) string {
	return fmt.Sprintf("data: {\"type\":\"response.output_text.delta\",\"delta\":%q}\n\n", text)
}

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has a --target flag with the config default", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("target")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("t"))
		Expect(flag.DefValue).To(Equal("http://localhost:8080"))
	})

	It("has --session, --new, --forget and --render flags", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Flags().Lookup("session")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("new")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("forget")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("render")).NotTo(BeNil())
	})
})

var _ = Describe("Chat against a running server", func() {
	var (
		configDir string
		upstream  *httptest.Server
		handler   http.HandlerFunc
		publisher *recordingPublisher
		stdout    *bytes.Buffer
		stderr    *bytes.Buffer
	)

	startServer := func(channel api.Channel) string {
		r := relay.New(relay.Config{
			APIKey:   "sk-test",
			Endpoint: upstream.URL,
			Timeout:  5 * time.Second,
			Logger:   logger.Nop(),
		})

		pool, err := worker.NewPool(&worker.Config{Publisher: publisher, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		server := api.NewServer(api.Config{Channel: channel, Keepalive: time.Second}, r, broadcast.NewHub(logger.Nop()), pool, logger.Nop())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() {
			defer GinkgoRecover()
			_ = server.RunWithListener(ln)
		}()
		DeferCleanup(func() {
			_ = server.Shutdown()
			pool.Close()
		})

		return "http://" + ln.Addr().String()
	}

	chat := func(input string, args ...string) error {
		cmd := chatcmder.NewChatCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetIn(strings.NewReader(input))
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		cmd.SetArgs(append([]string{"--config-dir", configDir}, args...))
		return cmd.Execute()
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		publisher = &recordingPublisher{}
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}

		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, chunk := range []string{deltaLine("Hel"), deltaLine("lo"), "data: [DONE]\n\n"} {
				_, _ = io.WriteString(w, chunk)
				flusher.Flush()
			}
		}
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(upstream.Close)
	})

	It("prints a directly streamed answer", func() {
		target := startServer(api.ChannelDirect)

		Expect(chat("hi\n/exit\n", "--target", target)).To(Succeed())
		Expect(stdout.String()).To(Equal("Hello\n"))
	})

	It("prints an answer delivered on the event stream", func() {
		target := startServer(api.ChannelBroadcast)

		Expect(chat("hi\nagain\n", "--target", target)).To(Succeed())
		Expect(stdout.String()).To(Equal("Hello\nHello\n"))
	})

	It("prints the upstream error as the answer", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, "rate limited")
		}
		target := startServer(api.ChannelDirect)

		Expect(chat("hi\n", "--target", target)).To(Succeed())
		Expect(stdout.String()).To(Equal("Error 429: rate limited\n"))
	})

	It("skips blank lines", func() {
		target := startServer(api.ChannelDirect)

		Expect(chat("\n   \nhi\n", "--target", target)).To(Succeed())
		Expect(stdout.String()).To(Equal("Hello\n"))
	})

	It("renders markdown with --render", func() {
		target := startServer(api.ChannelDirect)

		Expect(chat("hi\n", "--target", target, "--render")).To(Succeed())
		Expect(stdout.String()).To(ContainSubstring("Hello"))
	})

	Describe("sessions", func() {
		It("remembers a minted session", func() {
			target := startServer(api.ChannelDirect)
			Expect(chat("hi\n", "--target", target)).To(Succeed())

			state, err := dotdir.NewManager().LoadSession(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.Target).To(Equal(target))
			Expect(state.SessionID).NotTo(BeEmpty())

			Eventually(publisher.sessions).Should(ConsistOf(state.SessionID))
		})

		It("resumes the remembered session for the same server", func() {
			target := startServer(api.ChannelDirect)
			Expect(dotdir.NewManager().SaveSession(&dotdir.SessionState{
				SessionID: "remembered",
				Target:    target,
			}, configDir)).To(Succeed())

			Expect(chat("hi\n", "--target", target)).To(Succeed())
			Eventually(publisher.sessions).Should(ConsistOf("remembered"))
		})

		It("starts over with --new", func() {
			target := startServer(api.ChannelDirect)
			Expect(dotdir.NewManager().SaveSession(&dotdir.SessionState{
				SessionID: "remembered",
				Target:    target,
			}, configDir)).To(Succeed())

			Expect(chat("hi\n", "--target", target, "--new")).To(Succeed())
			Eventually(publisher.sessions).Should(HaveLen(1))
			Expect(publisher.sessions()).NotTo(ContainElement("remembered"))
		})

		It("ignores a session remembered for another server", func() {
			target := startServer(api.ChannelDirect)
			Expect(dotdir.NewManager().SaveSession(&dotdir.SessionState{
				SessionID: "elsewhere",
				Target:    "http://other:8080",
			}, configDir)).To(Succeed())

			Expect(chat("hi\n", "--target", target)).To(Succeed())
			Eventually(publisher.sessions).Should(HaveLen(1))
			Expect(publisher.sessions()).NotTo(ContainElement("elsewhere"))
		})

		It("forgets the remembered session with --forget", func() {
			Expect(dotdir.NewManager().SaveSession(&dotdir.SessionState{
				SessionID: "remembered",
				Target:    "http://127.0.0.1:1",
			}, configDir)).To(Succeed())

			Expect(chat("hi\n", "--target", "http://127.0.0.1:1", "--forget")).To(Succeed())
			Expect(stdout.String()).To(ContainSubstring("Forgot remembered session"))

			state, err := dotdir.NewManager().LoadSession(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("uses an explicit --session", func() {
			target := startServer(api.ChannelBroadcast)

			Expect(chat("hi\n", "--target", target, "--session", "kiosk-7")).To(Succeed())
			Eventually(publisher.sessions).Should(ConsistOf("kiosk-7"))
		})
	})

	It("fails when the server is unreachable", func() {
		err := chat("hi\n", "--target", "http://127.0.0.1:1")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("connecting to http://127.0.0.1:1"))
	})
})
