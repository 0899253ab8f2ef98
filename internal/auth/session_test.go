package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("MemoryStore", func() {
	var (
		ctx   context.Context
		store *MemoryStore
		now   time.Time
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		store = NewMemoryStore(time.Hour, testLogger)
		store.now = func() time.Time { return now }
	})

	ginkgo.It("creates sessions with random ids and the configured ttl", func() {
		a, err := store.Create(ctx, User{ID: "u-1"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		b, err := store.Create(ctx, User{ID: "u-1"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(a.ID).NotTo(gomega.Equal(b.ID))
		gomega.Expect(len(a.ID)).To(gomega.BeNumerically(">=", 43))
		gomega.Expect(a.ExpiresAt).To(gomega.Equal(now.Add(time.Hour)))
	})

	ginkgo.It("returns copies that callers cannot use to mutate the store", func() {
		sess, _ := store.Create(ctx, User{ID: "u-1", Role: coreuser.RoleAnalyst})
		sess.User.Role = coreuser.RoleAdmin

		got, ok := store.Get(ctx, sess.ID)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(got.User.Role).To(gomega.Equal(coreuser.RoleAnalyst))
	})

	ginkgo.It("expires sessions on read", func() {
		sess, _ := store.Create(ctx, User{ID: "u-1"})

		now = now.Add(time.Hour)

		_, ok := store.Get(ctx, sess.ID)
		gomega.Expect(ok).To(gomega.BeFalse())
		gomega.Expect(store.Len()).To(gomega.Equal(0))
	})

	ginkgo.It("purges only expired sessions", func() {
		old, _ := store.Create(ctx, User{ID: "u-1"})
		now = now.Add(30 * time.Minute)
		fresh, _ := store.Create(ctx, User{ID: "u-2"})
		now = now.Add(45 * time.Minute)

		gomega.Expect(store.Purge()).To(gomega.Equal(1))
		_, ok := store.Get(ctx, old.ID)
		gomega.Expect(ok).To(gomega.BeFalse())
		_, ok = store.Get(ctx, fresh.ID)
		gomega.Expect(ok).To(gomega.BeTrue())
	})

	ginkgo.It("deletes every session of one user", func() {
		_, _ = store.Create(ctx, User{ID: "u-1"})
		_, _ = store.Create(ctx, User{ID: "u-1"})
		other, _ := store.Create(ctx, User{ID: "u-2"})

		gomega.Expect(store.DeleteByUser(ctx, "u-1")).To(gomega.Equal(2))
		gomega.Expect(store.Len()).To(gomega.Equal(1))
		_, ok := store.Get(ctx, other.ID)
		gomega.Expect(ok).To(gomega.BeTrue())
	})

	ginkgo.It("survives concurrent use", func() {
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer ginkgo.GinkgoRecover()
				uid := fmt.Sprintf("u-%d", i%4)
				sess, err := store.Create(ctx, User{ID: uid})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				_, ok := store.Get(ctx, sess.ID)
				gomega.Expect(ok).To(gomega.BeTrue())
				store.Purge()
				if i%2 == 0 {
					store.Delete(ctx, sess.ID)
				}
			}(i)
		}
		wg.Wait()
		gomega.Expect(store.Len()).To(gomega.Equal(16))
	})

	ginkgo.It("stops the janitor when the context ends", func() {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			store.Run(runCtx, time.Millisecond)
			close(done)
		}()

		cancel()
		gomega.Eventually(done).Should(gomega.BeClosed())
	})
})

var _ = ginkgo.Describe("CookieCodec", func() {
	var (
		codec *CookieCodec
		sess  *Session
	)

	ginkgo.BeforeEach(func() {
		codec = NewCookieCodec("redteam.sid", "0123456789abcdef0123456789abcdef", true)
		sess = &Session{ID: "sid-123", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	})

	ginkgo.It("round-trips the session id", func() {
		value, err := codec.Encode(sess)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		sid, err := codec.Decode(value)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(sid).To(gomega.Equal("sid-123"))
	})

	ginkgo.It("rejects values signed with another secret", func() {
		other := NewCookieCodec("redteam.sid", "ffffffffffffffffffffffffffffffff", true)
		value, _ := other.Encode(sess)

		_, err := codec.Decode(value)
		gomega.Expect(err).To(gomega.MatchError(ErrInvalidCookie))
	})

	ginkgo.It("rejects expired values", func() {
		sess.CreatedAt = time.Now().Add(-2 * time.Hour)
		sess.ExpiresAt = time.Now().Add(-time.Hour)
		value, _ := codec.Encode(sess)

		_, err := codec.Decode(value)
		gomega.Expect(err).To(gomega.MatchError(ErrInvalidCookie))
	})

	ginkgo.It("rejects a raw session id", func() {
		_, err := codec.Decode("sid-123")
		gomega.Expect(err).To(gomega.MatchError(ErrInvalidCookie))
	})

	ginkgo.It("issues http-only cookies", func() {
		ck, err := codec.Cookie(sess)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ck.Name).To(gomega.Equal("redteam.sid"))
		gomega.Expect(ck.HttpOnly).To(gomega.BeTrue())
		gomega.Expect(ck.Secure).To(gomega.BeTrue())
		gomega.Expect(codec.Clear().MaxAge).To(gomega.Equal(-1))
	})
})
