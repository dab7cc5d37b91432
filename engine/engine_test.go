package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/najoast/relaybench/config"
	"github.com/najoast/relaybench/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	chainLengths = []int{1, 2, 4, 8}
	messageSizes = []int{0, 1, 4, 16, 64, 256, 1024, 4096}
)

func newEngine(t *testing.T, name string) core.Engine {
	cfg := config.DefaultConfig().Engine
	cfg.Workers = 2
	e, err := New(name, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, e.Shutdown(ctx))
	})
	return e
}

func forEachEngine(t *testing.T, f func(t *testing.T, e core.Engine)) {
	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			f(t, newEngine(t, name))
		})
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func descending(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = n - 1 - i
	}
	return out
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New("actix", config.DefaultConfig().Engine, nil)
	require.ErrorIs(t, err, ErrUnknownEngine)
}

func TestBuildChainWiring(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		for _, n := range chainLengths {
			chain, err := core.BuildChain(testContext(t), e, n, 0)
			require.NoError(t, err)
			require.Equal(t, n, chain.Len())
			require.Nil(t, chain.Predecessor(0))
			for i := 1; i < n; i++ {
				require.Equal(t, chain.At(i-1).ID(), chain.Predecessor(i).ID())
			}
			require.Equal(t, chain.At(0).ID(), chain.Root().ID())
			require.Equal(t, chain.At(n-1).ID(), chain.Tail().ID())
			require.NoError(t, chain.Close())
		}
	})
}

func TestRelayTraversesWholeChain(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		for _, n := range chainLengths {
			for _, size := range messageSizes {
				recorder := core.NewRecorder()
				chain, err := core.BuildChain(testContext(t), e, n, size, core.WithProbe(recorder))
				require.NoError(t, err)

				fut := chain.RunOnce(core.NewMessage(size))
				require.NoError(t, fut.Wait(testContext(t)), "n=%d size=%d", n, size)
				require.Equal(t, descending(n), recorder.Indices(), "n=%d size=%d", n, size)
				require.NoError(t, chain.Close())
			}
		}
	})
}

func TestRelayConcreteScenario(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		recorder := core.NewRecorder()
		chain, err := core.BuildChain(testContext(t), e, 4, 16, core.WithProbe(recorder))
		require.NoError(t, err)

		require.NoError(t, core.Relay(testContext(t), chain.Tail(), core.NewMessage(16)))
		require.Equal(t, []int{3, 2, 1, 0}, recorder.Indices())
	})
}

func TestSingleActorChain(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		recorder := core.NewRecorder()
		chain, err := core.BuildChain(testContext(t), e, 1, 4, core.WithProbe(recorder))
		require.NoError(t, err)

		require.NoError(t, chain.Relay(testContext(t), core.NewMessage(4)))
		require.Equal(t, []int{0}, recorder.Indices())
	})
}

func TestRelayTwice(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		recorder := core.NewRecorder()
		chain, err := core.BuildChain(testContext(t), e, 8, 64, core.WithProbe(recorder))
		require.NoError(t, err)

		require.NoError(t, chain.Relay(testContext(t), core.NewMessage(64)))
		require.Equal(t, 8, recorder.Count())
		recorder.Reset()

		require.NoError(t, chain.Relay(testContext(t), core.NewMessage(64)))
		require.Equal(t, descending(8), recorder.Indices())
	})
}

func TestConcurrentRelays(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		const senders = 16
		recorder := core.NewRecorder()
		chain, err := core.BuildChain(testContext(t), e, 8, 16, core.WithProbe(recorder))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, senders)
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- chain.Relay(testContext(t), core.NewMessage(16))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, senders*8, recorder.Count())
	})
}

func TestRootTornDown(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		recorder := core.NewRecorder()
		chain, err := core.BuildChain(testContext(t), e, 4, 16, core.WithProbe(recorder))
		require.NoError(t, err)

		require.NoError(t, e.Stop(chain.Root()))
		require.False(t, chain.Root().Alive())
		require.True(t, chain.Tail().Alive())

		err = chain.Relay(testContext(t), core.NewMessage(16))
		require.ErrorIs(t, err, core.ErrDeliveryFailure)
		require.Equal(t, []int{3, 2, 1}, recorder.Indices())

		// Stopping twice reports the actor as gone.
		require.ErrorIs(t, e.Stop(chain.Root()), core.ErrActorNotFound)
		// Close skips the already stopped root.
		require.NoError(t, chain.Close())
	})
}

func TestStopForeignAddress(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		other := newEngine(t, e.Name())
		addr, err := other.Spawn(&core.RelayHandler{}, core.DefaultActorOptions())
		require.NoError(t, err)
		require.ErrorIs(t, e.Stop(addr), core.ErrActorNotFound)
	})
}

func TestMessageSizeIsFixedPerChain(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		chain, err := core.BuildChain(testContext(t), e, 2, 16, core.WithActorOptions(core.DefaultActorOptions()))
		require.NoError(t, err)
		require.ErrorIs(t, chain.Relay(testContext(t), core.NewMessage(64)), core.ErrMessageSize)
	})
}

func TestSpawnAfterShutdown(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		require.NoError(t, e.Shutdown(testContext(t)))

		_, err := core.BuildChain(testContext(t), e, 3, 0)
		require.ErrorIs(t, err, core.ErrConstructionFailure)
		require.ErrorIs(t, err, core.ErrEngineStopped)
	})
}

func TestShutdownFailsLaterSends(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		chain, err := core.BuildChain(testContext(t), e, 2, 0)
		require.NoError(t, err)
		require.NoError(t, e.Shutdown(testContext(t)))
		require.Empty(t, e.Stats())

		require.ErrorIs(t, chain.Relay(testContext(t), core.NewMessage(0)), core.ErrDeliveryFailure)
	})
}

func TestHandlerPanic(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		var calls int32
		addr, err := e.Spawn(core.HandlerFunc(func(ctx core.Context, msg core.Message) *core.Future {
			if atomic.AddInt32(&calls, 1) == 1 {
				panic("boom")
			}
			return nil
		}), core.DefaultActorOptions())
		require.NoError(t, err)

		err = core.Relay(testContext(t), addr, core.NewMessage(1))
		require.ErrorIs(t, err, core.ErrHandlerPanic)

		// The actor survives the panic.
		require.NoError(t, core.Relay(testContext(t), addr, core.NewMessage(1)))
	})
}

// gatedHandler keeps its first message pending until the gate resolves.
type gatedHandler struct {
	gate    *core.Future
	started chan struct{}
	handled int32
	active  int32
	overlap int32
}

func (h *gatedHandler) Handle(_ core.Context, _ core.Message) *core.Future {
	if atomic.AddInt32(&h.active, 1) > 1 {
		atomic.StoreInt32(&h.overlap, 1)
	}
	defer atomic.AddInt32(&h.active, -1)

	if atomic.AddInt32(&h.handled, 1) == 1 {
		close(h.started)
		return h.gate
	}
	return nil
}

func TestMailboxIsSequential(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		h := &gatedHandler{gate: core.NewFuture(), started: make(chan struct{})}
		addr, err := e.Spawn(h, core.DefaultActorOptions())
		require.NoError(t, err)

		first := addr.Send(core.NewMessage(0))
		<-h.started
		second := addr.Clone().Send(core.NewMessage(0))

		// The second message waits for the first one's pending work.
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, int32(1), atomic.LoadInt32(&h.handled))
		require.False(t, first.IsResolved())
		require.False(t, second.IsResolved())

		h.gate.Resolve(nil)
		require.NoError(t, first.Wait(testContext(t)))
		require.NoError(t, second.Wait(testContext(t)))
		require.Equal(t, int32(2), atomic.LoadInt32(&h.handled))
		require.Equal(t, int32(0), atomic.LoadInt32(&h.overlap))
	})
}

func TestStopFailsQueuedMessages(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		h := &gatedHandler{gate: core.NewFuture(), started: make(chan struct{})}
		addr, err := e.Spawn(h, core.DefaultActorOptions())
		require.NoError(t, err)

		inFlight := addr.Send(core.NewMessage(0))
		<-h.started
		queued := []*core.Future{addr.Send(core.NewMessage(0)), addr.Send(core.NewMessage(0))}

		stopped := make(chan error, 1)
		go func() {
			stopped <- e.Stop(addr)
		}()
		require.Eventually(t, func() bool { return !addr.Alive() }, 5*time.Second, time.Millisecond)

		h.gate.Resolve(nil)
		require.NoError(t, <-stopped)
		require.NoError(t, inFlight.Wait(testContext(t)))
		for _, fut := range queued {
			require.ErrorIs(t, fut.Wait(testContext(t)), core.ErrDeliveryFailure)
		}
		require.ErrorIs(t, addr.Send(core.NewMessage(0)).Wait(testContext(t)), core.ErrDeliveryFailure)
	})
}

func TestStats(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e core.Engine) {
		chain, err := core.BuildChain(testContext(t), e, 4, 0)
		require.NoError(t, err)
		require.NoError(t, chain.Relay(testContext(t), core.NewMessage(0)))

		// The tail may still be unwinding when the relay resolves.
		require.Eventually(t, func() bool {
			for _, s := range e.Stats() {
				if s.State != core.ActorStateIdle {
					return false
				}
			}
			return true
		}, 5*time.Second, time.Millisecond)

		stats := e.Stats()
		require.Len(t, stats, 4)
		names := make(map[string]bool)
		for _, s := range stats {
			require.Equal(t, uint64(1), s.MessagesProcessed)
			require.Zero(t, s.MailboxSize)
			names[s.Name] = true
		}
		for i := 0; i < 4; i++ {
			require.True(t, names[fmt.Sprintf("relay-%d", i)])
		}
	})
}
