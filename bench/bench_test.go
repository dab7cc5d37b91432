package bench

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/najoast/relaybench/bootstrap"
	"github.com/najoast/relaybench/config"
	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/engine"
	"github.com/najoast/relaybench/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startedSession(tb testing.TB, cfg *config.Config, logger *zap.Logger) *Session {
	s, err := NewSession(cfg, logger)
	require.NoError(tb, err)
	require.NoError(tb, s.Start(context.Background()))
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(tb, s.Close(ctx))
	})
	return s
}

func TestMatrix(t *testing.T) {
	cases := Matrix(config.BenchConfig{
		Engines:      []string{"mailbox", "phony"},
		ChainLengths: []int{1, 4},
		MessageSizes: []int{0, 16},
	})
	assert.Equal(t, []string{
		"mailbox 1/0", "mailbox 1/16", "mailbox 4/0", "mailbox 4/16",
		"phony 1/0", "phony 1/16", "phony 4/0", "phony 4/16",
	}, caseNames(cases))

	assert.Len(t, Matrix(config.DefaultConfig().Bench), 3*4*8)
	assert.Empty(t, Matrix(config.BenchConfig{}))
}

func TestNewSessionRejectsUnknownEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bench.Engines = []string{"mailbox", "tokio"}
	_, err := NewSession(cfg, nil)
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)

	cfg.Bench.Engines = nil
	_, err = NewSession(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidEngines)
}

func TestSessionLifecycle(t *testing.T) {
	s, err := NewSession(config.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = s.Engine("pool")
	assert.ErrorIs(t, err, ErrEngineNotRunning)
	for name, h := range s.Health(context.Background()) {
		assert.Equal(t, bootstrap.HealthStopped, h.State, name)
	}
	assert.Empty(t, s.ConfigFile())

	require.NoError(t, s.Start(context.Background()))
	for _, name := range engine.Names() {
		e, err := s.Engine(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}
	_, err = s.Engine("tokio")
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)
	_, err = s.Engine("config")
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)

	chain, err := s.Setup(context.Background(), Case{Engine: "pool", Length: 3, Size: 8})
	require.NoError(t, err)
	health := s.Health(context.Background())
	assert.Equal(t, bootstrap.HealthHealthy, health["pool"].State)
	assert.Equal(t, 3, health["pool"].Data["actors"])
	assert.Equal(t, bootstrap.HealthHealthy, health["config"].State)
	assert.Equal(t, false, health["config"].Data["watching"])
	require.NoError(t, chain.Close())

	require.NoError(t, s.Close(context.Background()))
	_, err = s.Engine("pool")
	assert.ErrorIs(t, err, ErrEngineNotRunning)
}

func TestSetupRelaysEveryCase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bench.ChainLengths = []int{1, 4}
	cfg.Bench.MessageSizes = []int{0, 16}
	s := startedSession(t, cfg, zaptest.NewLogger(t))

	for _, c := range s.Cases() {
		c := c
		t.Run(c.Name(), func(t *testing.T) {
			rec := core.NewRecorder()
			chain, err := s.Setup(context.Background(), c, core.WithProbe(rec))
			require.NoError(t, err)
			defer func() { require.NoError(t, chain.Close()) }()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, chain.Relay(ctx, core.NewMessage(c.Size)))
			assert.Equal(t, c.Length, rec.Count())
		})
	}
}

func TestSetupRejectsEmptyChain(t *testing.T) {
	s := startedSession(t, config.DefaultConfig(), nil)
	chain, err := s.Setup(context.Background(), Case{Engine: "phony", Length: 0, Size: 4})
	require.NoError(t, err)
	assert.ErrorIs(t, chain.Relay(context.Background(), core.NewMessage(4)), core.ErrEmptyChain)
}

func TestOpen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "relaybench.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
app:
  environment: testing
bench:
  engines: [phony]
  chain_lengths: [2]
  message_sizes: [32]
`), 0o644))

	registry := prometheus.NewRegistry()
	s, err := Open(file, registry)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	cases := s.Cases()
	require.Len(t, cases, 1)
	assert.Equal(t, "phony 2/32", cases[0].Name())
	assert.Equal(t, file, s.ConfigFile())
	assert.Equal(t, true, s.Health(context.Background())["config"].Data["watching"])

	before := testutil.ToFloat64(metricsSpawned("phony"))
	chain, err := s.Setup(context.Background(), cases[0])
	require.NoError(t, err)
	defer func() { require.NoError(t, chain.Close()) }()
	assert.Equal(t, before+2, testutil.ToFloat64(metricsSpawned("phony")))

	_, err = s.Engine("mailbox")
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)
}

func TestOpenWithoutFile(t *testing.T) {
	// The package directory holds no configuration file.
	s, err := Open("", nil)
	require.NoError(t, err)
	assert.Empty(t, s.ConfigFile())
	assert.NotEmpty(t, s.Cases())
}

func writeConfig(t *testing.T, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
}

func caseNames(cases []Case) []string {
	names := make([]string, 0, len(cases))
	for _, c := range cases {
		names = append(names, c.Name())
	}
	return names
}

func TestSessionReloadsMatrix(t *testing.T) {
	file := filepath.Join(t.TempDir(), "relaybench.yaml")
	writeConfig(t, file, "bench:\n  engines: [mailbox]\n  chain_lengths: [1]\n  message_sizes: [0]\n")

	cfg, err := config.NewLoader().LoadFromFile(file)
	require.NoError(t, err)
	s := newSessionWatching(t, cfg, file)

	reloaded := make(chan []Case, 1)
	s.OnReload(func(cases []Case) {
		select {
		case reloaded <- cases:
		default:
		}
	})
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"mailbox 1/0"}, caseNames(s.Cases()))
	require.ErrorIs(t, s.Watch(file), bootstrap.ErrAlreadyStarted)

	writeConfig(t, file, "bench:\n  engines: [mailbox]\n  chain_lengths: [2, 4]\n  message_sizes: [16]\n")
	select {
	case cases := <-reloaded:
		assert.Equal(t, []string{"mailbox 2/16", "mailbox 4/16"}, caseNames(cases))
	case <-time.After(5 * time.Second):
		t.Fatal("matrix was not reloaded")
	}
	assert.Equal(t, []string{"mailbox 2/16", "mailbox 4/16"}, caseNames(s.Cases()))
	assert.Equal(t, []int{2, 4}, s.Config().Bench.ChainLengths)

	rec := core.NewRecorder()
	chain, err := s.Setup(context.Background(), s.Cases()[1], core.WithProbe(rec))
	require.NoError(t, err)
	defer func() { require.NoError(t, chain.Close()) }()
	require.NoError(t, chain.Relay(context.Background(), core.NewMessage(16)))
	assert.Equal(t, 4, rec.Count())
}

// newSessionWatching returns an unstarted session watching file; it is
// closed when the test ends.
func newSessionWatching(t *testing.T, cfg *config.Config, file string) *Session {
	s, err := NewSession(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Watch(file))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Close(ctx))
	})
	return s
}

func TestSessionStartsConfigBeforeEngines(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bench.Engines = []string{"pool", "mailbox"}
	s, err := NewSession(cfg, nil)
	require.NoError(t, err)

	var events []string
	s.OnLifecycle(func(e bootstrap.LifecycleEvent) {
		if e.Type == "service.started" || e.Type == "service.stopped" {
			events = append(events, e.Type+" "+e.Service)
		}
	})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, []string{
		"service.started config",
		"service.started mailbox",
		"service.started pool",
		"service.stopped pool",
		"service.stopped mailbox",
		"service.stopped config",
	}, events)
}

func TestSetupEngineMismatch(t *testing.T) {
	s := startedSession(t, config.DefaultConfig(), nil)
	e, err := s.Engine("mailbox")
	require.NoError(t, err)
	_, err = Setup(context.Background(), e, Case{Engine: "pool", Length: 1})
	assert.ErrorIs(t, err, engine.ErrUnknownEngine)
}

func BenchmarkRelay(b *testing.B) {
	s := startedSession(b, config.DefaultConfig(), zap.NewNop())

	for _, c := range s.Cases() {
		c := c
		b.Run(c.Name(), func(b *testing.B) {
			chain, err := s.Setup(context.Background(), c)
			require.NoError(b, err)
			defer func() { require.NoError(b, chain.Close()) }()

			ctx := context.Background()
			msg := core.NewMessage(c.Size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := chain.Relay(ctx, msg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func metricsSpawned(name string) prometheus.Collector {
	return metrics.ActorsSpawned.WithLabelValues(name)
}
