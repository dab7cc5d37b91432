package bench

import (
	"context"

	"github.com/najoast/relaybench/bootstrap"
	"github.com/najoast/relaybench/config"
)

// configServiceName is the lifecycle name every engine depends on.
const configServiceName = "config"

// configService watches the session's configuration file, if it has one,
// for as long as the session runs.
type configService struct {
	s       *Session
	file    string
	running bool
	watcher *config.Watcher
}

var _ bootstrap.Service = (*configService)(nil)

func (c *configService) Name() string {
	return configServiceName
}

func (c *configService) Start(ctx context.Context) error {
	if c.file == "" {
		c.running = true
		return nil
	}
	w, err := config.NewWatcher(c.file, c.s.loader, c.s.logger)
	if err != nil {
		return err
	}
	w.OnConfigChange(c.s.reload)
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}
	c.watcher = w
	c.running = true
	return nil
}

func (c *configService) Stop(ctx context.Context) error {
	c.running = false
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Stop()
	c.watcher = nil
	return err
}

func (c *configService) Health(ctx context.Context) (bootstrap.HealthStatus, error) {
	if !c.running {
		return bootstrap.HealthStatus{State: bootstrap.HealthStopped}, nil
	}
	return bootstrap.HealthStatus{
		State: bootstrap.HealthHealthy,
		Data: map[string]interface{}{
			"file":     c.file,
			"watching": c.watcher != nil,
		},
	}, nil
}
