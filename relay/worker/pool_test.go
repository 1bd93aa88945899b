package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
	err    error
	block  chan struct{}
}

func (r *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*eventstream.TurnCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.TurnCompletedEvent(nil), r.events...)
}

func newEvent(session string) *eventstream.TurnCompletedEvent {
	return eventstream.NewTurnCompletedEvent(
		eventstream.EventSource{SessionID: session, Channel: "direct"},
		eventstream.TurnMeta{Outcome: "completed"},
	)
}

var _ = Describe("Worker Pool", func() {
	var (
		pub *recordingPublisher
		wp  *Pool
	)

	BeforeEach(func() {
		pub = &recordingPublisher{}
		var err error
		wp, err = NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(MatchError("publisher is required"))
	})

	It("applies defaults", func() {
		c := &Config{Publisher: nop.NewPublisher()}
		p, err := NewPool(c)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(c.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(c.QueueSize).To(Equal(defaultJobQueueSize))
		Expect(c.PublishTimeout).To(Equal(defaultPublishTimeout))
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(wp.Enqueue(Job{Event: newEvent("a")})).To(BeTrue())
			wp.Close()
		})

		It("publishes every enqueued event before Close returns", func() {
			for _, s := range []string{"a", "b", "c", "d"} {
				Expect(wp.Enqueue(Job{Event: newEvent(s)})).To(BeTrue())
			}
			wp.Close()

			sessions := []string{}
			for _, e := range pub.published() {
				sessions = append(sessions, e.Source.SessionID)
			}
			Expect(sessions).To(ConsistOf("a", "b", "c", "d"))
		})

		It("drops jobs when the queue is full", func() {
			blocked := &recordingPublisher{block: make(chan struct{})}
			p, err := NewPool(&Config{Publisher: blocked, NumWorkers: 1, QueueSize: 1, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			// The single worker takes the first job and blocks; the second
			// fills the queue.
			Expect(p.Enqueue(Job{Event: newEvent("1")})).To(BeTrue())
			Eventually(func() int { return len(p.queue) }).Should(BeZero())
			Expect(p.Enqueue(Job{Event: newEvent("2")})).To(BeTrue())
			Expect(p.Enqueue(Job{Event: newEvent("3")})).To(BeFalse())

			close(blocked.block)
			p.Close()
			Expect(blocked.published()).To(HaveLen(2))
		})

		It("drops jobs after Close", func() {
			wp.Close()
			Expect(wp.Enqueue(Job{Event: newEvent("late")})).To(BeFalse())
		})
	})

	It("logs publish failures and keeps working", func() {
		buf := &bytes.Buffer{}
		failing := &recordingPublisher{err: errors.New("broker down")}
		p, err := NewPool(&Config{Publisher: failing, NumWorkers: 1, Logger: logger.New(logger.WithWriter(buf))})
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Enqueue(Job{Event: newEvent("a")})).To(BeTrue())
		p.Close()

		Expect(buf.String()).To(ContainSubstring("turn event publish failed"))
		Expect(buf.String()).To(ContainSubstring("broker down"))
	})

	It("tolerates a second Close", func() {
		wp.Close()
		Expect(wp.Close).NotTo(Panic())
	})
})
