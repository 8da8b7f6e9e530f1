package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/minichat/internal/agent"
	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/node"
	"github.com/efebarandurmaz/minichat/internal/observability"
)

type stubProvider struct{}

func (stubProvider) Complete(ctx context.Context, p *llm.Prompt, o *llm.RequestOptions) (*llm.Response, error) {
	return &llm.Response{Content: "ok"}, nil
}
func (stubProvider) Name() string   { return "stub" }
func (stubProvider) Info() llm.Info { return llm.Info{Provider: "stub", Model: "m"} }

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, command string) node.Result { return node.OK(nil) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, idle time.Duration, opts ...Option) (*Store, *int) {
	t.Helper()
	built := 0
	factory := func() *agent.Agent {
		built++
		return agent.New(stubProvider{}, stubExecutor{})
	}
	return NewStore(factory, idle, opts...), &built
}

func TestCreate_AssignsUUID(t *testing.T) {
	s, _ := newStore(t, 0)

	a := s.Create()
	b := s.Create()

	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, s.Len())
}

func TestGet(t *testing.T) {
	s, _ := newStore(t, 0)
	sess := s.Create()

	got, ok := s.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = s.Get("not-a-session")
	assert.False(t, ok)
}

func TestAgent_BuiltOnceOnFirstUse(t *testing.T) {
	s, built := newStore(t, 0)
	sess := s.Create()
	assert.Equal(t, 0, *built)

	a1 := sess.Agent()
	a2 := sess.Agent()

	assert.Same(t, a1, a2)
	assert.Equal(t, 1, *built)
}

func TestSessions_HaveSeparateHistories(t *testing.T) {
	s, _ := newStore(t, 0)
	one, two := s.Create(), s.Create()

	_, err := one.Agent().Chat(context.Background(), "hello")
	require.NoError(t, err)

	assert.Len(t, one.Agent().History(), 2)
	assert.Empty(t, two.Agent().History())
}

func TestDelete(t *testing.T) {
	s, _ := newStore(t, 0)
	sess := s.Create()

	s.Delete(sess.ID)
	s.Delete(sess.ID)

	_, ok := s.Get(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestIdleSessionsPruned(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := observability.NewMetrics()
	s, _ := newStore(t, time.Hour, WithClock(c.Now), WithMetrics(m))

	stale := s.Create()
	c.Advance(30 * time.Minute)
	fresh := s.Create()
	assert.Equal(t, float64(2), m.ActiveSessions.Value())

	c.Advance(45 * time.Minute)
	_, ok := s.Get(stale.ID)
	assert.False(t, ok, "stale session should expire after an hour idle")
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, float64(1), m.ActiveSessions.Value())
}

func TestGet_RefreshesIdleTimer(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newStore(t, time.Hour, WithClock(c.Now))
	sess := s.Create()

	for i := 0; i < 5; i++ {
		c.Advance(50 * time.Minute)
		_, ok := s.Get(sess.ID)
		require.True(t, ok, "iteration %d", i)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newStore(t, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := s.Create()
			if _, ok := s.Get(sess.ID); !ok {
				t.Error("session vanished")
			}
			s.Delete(sess.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}
