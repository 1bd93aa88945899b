package broadcast_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/broadcast"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

var _ = Describe("Hub", func() {
	var hub *broadcast.Hub

	BeforeEach(func() {
		hub = broadcast.NewHub(logger.Nop())
	})

	It("reports ErrNoSubscriber for an unknown session", func() {
		Expect(hub.Has("s1")).To(BeFalse())
		Expect(hub.Push("s1", broadcast.Chunk("x"))).To(MatchError(broadcast.ErrNoSubscriber))
	})

	It("delivers pushed events in order", func() {
		sub := hub.Subscribe("s1")
		Expect(hub.Has("s1")).To(BeTrue())

		Expect(hub.Push("s1", broadcast.Chunk("Hel"))).To(Succeed())
		Expect(hub.Push("s1", broadcast.Chunk("lo"))).To(Succeed())
		Expect(hub.Push("s1", broadcast.Done())).To(Succeed())

		Expect(sub.Ready()).To(Receive())
		Expect(sub.Drain()).To(Equal([]broadcast.Event{
			broadcast.Chunk("Hel"),
			broadcast.Chunk("lo"),
			broadcast.Done(),
		}))
		Expect(sub.Drain()).To(BeEmpty())
		Expect(sub.Ready()).NotTo(Receive())
	})

	It("isolates sessions", func() {
		a := hub.Subscribe("a")
		b := hub.Subscribe("b")

		Expect(hub.Push("a", broadcast.Chunk("for a"))).To(Succeed())

		Expect(a.Drain()).To(Equal([]broadcast.Event{broadcast.Chunk("for a")}))
		Expect(b.Ready()).NotTo(Receive())
		Expect(b.Drain()).To(BeEmpty())
	})

	It("displaces the previous subscriber of a session", func() {
		buf := &bytes.Buffer{}
		hub = broadcast.NewHub(logger.New(logger.WithWriter(buf)))

		first := hub.Subscribe("s1")
		second := hub.Subscribe("s1")

		Expect(first.Done()).To(BeClosed())
		Expect(buf.String()).To(ContainSubstring("subscriber displaced"))

		Expect(hub.Push("s1", broadcast.Chunk("x"))).To(Succeed())
		Expect(second.Drain()).To(Equal([]broadcast.Event{broadcast.Chunk("x")}))
		Expect(first.Drain()).To(BeEmpty())
		Expect(hub.Len()).To(Equal(1))
	})

	It("lets a displaced subscriber unsubscribe without removing its successor", func() {
		first := hub.Subscribe("s1")
		second := hub.Subscribe("s1")

		hub.Unsubscribe(first)
		Expect(hub.Has("s1")).To(BeTrue())

		hub.Unsubscribe(second)
		Expect(hub.Has("s1")).To(BeFalse())
		Expect(second.Done()).To(BeClosed())
	})

	It("closes a session's subscription", func() {
		sub := hub.Subscribe("s1")
		hub.Close("s1")

		Expect(sub.Done()).To(BeClosed())
		Expect(hub.Has("s1")).To(BeFalse())
		Expect(hub.Push("s1", broadcast.Done())).To(MatchError(broadcast.ErrNoSubscriber))

		Expect(func() { hub.Close("s1") }).NotTo(Panic())
		Expect(func() { hub.Unsubscribe(sub) }).NotTo(Panic())
	})

	It("keeps every event for a subscriber that has not drained", func() {
		sub := hub.Subscribe("s1")

		for range 300 {
			Expect(hub.Push("s1", broadcast.Chunk("t"))).To(Succeed())
		}
		Expect(hub.Push("s1", broadcast.Done())).To(Succeed())
		Expect(sub.Pending()).To(Equal(301))

		events := sub.Drain()
		Expect(events).To(HaveLen(301))
		Expect(events[:300]).To(HaveEach(broadcast.Chunk("t")))
		Expect(events[300]).To(Equal(broadcast.Done()))
	})

	It("warns while a subscriber falls behind", func() {
		buf := &bytes.Buffer{}
		hub = broadcast.NewHub(logger.New(logger.WithWriter(buf)))
		hub.Subscribe("s1")

		for range 1024 {
			Expect(hub.Push("s1", broadcast.Chunk("t"))).To(Succeed())
		}
		Expect(buf.String()).To(ContainSubstring("subscriber falling behind"))
	})

	It("leaves events queued before Close drainable", func() {
		sub := hub.Subscribe("s1")
		Expect(hub.Push("s1", broadcast.Chunk("last"))).To(Succeed())
		Expect(hub.Push("s1", broadcast.Done())).To(Succeed())
		hub.Close("s1")

		Expect(sub.Done()).To(BeClosed())
		Expect(sub.Drain()).To(Equal([]broadcast.Event{broadcast.Chunk("last"), broadcast.Done()}))
	})

	It("closes every subscription on CloseAll", func() {
		a := hub.Subscribe("a")
		b := hub.Subscribe("b")
		hub.CloseAll()

		Expect(a.Done()).To(BeClosed())
		Expect(b.Done()).To(BeClosed())
		Expect(hub.Len()).To(BeZero())
	})

	It("tolerates concurrent push, subscribe and unsubscribe", func() {
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(2)
			session := fmt.Sprintf("s%d", i%4)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				sub := hub.Subscribe(session)
				for range 50 {
					sub.Drain()
				}
				hub.Unsubscribe(sub)
			}()
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for range 50 {
					_ = hub.Push(session, broadcast.Chunk("x"))
				}
			}()
		}
		wg.Wait()
		hub.CloseAll()
	})

	Describe("Event", func() {
		It("encodes chunk and done payloads", func() {
			chunk, err := json.Marshal(broadcast.Chunk("Hi"))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk).To(MatchJSON(`{"type":"assistant_chunk","delta":"Hi"}`))

			done, err := json.Marshal(broadcast.Done())
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(MatchJSON(`{"type":"assistant_done"}`))
		})
	})
})
