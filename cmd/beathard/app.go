package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/device"
	goble "github.com/srg/beathard/internal/device/go-ble"
	"github.com/srg/beathard/internal/journal"
	"github.com/srg/beathard/internal/supervisor"
	"github.com/srg/beathard/pkg/config"
)

// adapterFactory is swapped in tests.
var adapterFactory = func(logger *logrus.Logger, queueSize int) device.AdapterFactory {
	return goble.Factory(logger, queueSize)
}

// app bundles the manager with the sinks enabled in the config.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	fanout  *broadcast.Fanout
	hub     *broadcast.Hub
	journal *journal.Journal
	manager *supervisor.Manager
	closers []io.Closer
}

// newApp connects every configured sink. extra sinks are added first.
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger, withHub bool, extra map[string]broadcast.Publisher) (*app, error) {
	a := &app{cfg: cfg, logger: logger, fanout: broadcast.NewFanout(logger)}

	for name, p := range extra {
		a.fanout.Add(name, p)
	}

	if withHub {
		a.hub = broadcast.NewHub(cfg.Server.ClientQueue, logger)
		a.fanout.Add("websocket", a.hub)
		a.closers = append(a.closers, a.hub)
	}

	if cfg.MQTT.Enabled {
		p, err := broadcast.DialMQTT(cfg.MQTTOptions(), logger)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("mqtt sink: %w", err)
		}
		a.fanout.Add("mqtt", p)
		a.closers = append(a.closers, p)
	}

	if cfg.Redis.Enabled {
		p, err := broadcast.DialRedis(ctx, cfg.RedisOptions())
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		a.fanout.Add("redis", p)
		a.closers = append(a.closers, p)
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.journal = j
		a.fanout.Add("journal", j)
		a.closers = append(a.closers, j)
	}

	factory := adapterFactory(logger, cfg.Radio.QueueSize)
	a.manager = supervisor.New(factory, a.fanout, cfg.ManagerOptions(), logger)
	logger.WithField("sinks", a.fanout.Len()).Debug("Manager ready")
	return a, nil
}

// close stops every session and releases the sinks.
func (a *app) close(ctx context.Context) {
	if a.manager != nil {
		if err := a.manager.Cleanup(ctx); err != nil {
			a.logger.WithError(err).Warn("Cleanup reported errors")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close sink")
		}
	}
}
