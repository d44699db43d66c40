package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crowdq/internal/actions"
	"github.com/desertthunder/crowdq/internal/catalog"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/player"
	"github.com/desertthunder/crowdq/internal/repositories"
	"github.com/desertthunder/crowdq/internal/resolver"
	"github.com/desertthunder/crowdq/internal/scheduler"
	"github.com/desertthunder/crowdq/internal/shared"
)

const redisBuffer = 64

// engine is a running scheduler plus everything it owns.
type engine struct {
	sched      *scheduler.Scheduler
	dispatcher *actions.Dispatcher
	bus        *events.Bus
	closers    []func() error
}

// startEngine wires the rotation engine from the loaded config and starts its loop on ctx.
// Callers cancel ctx and then call stop.
func (r *Runner) startEngine(ctx context.Context, simulate bool) (*engine, error) {
	cfg := r.config
	e := &engine{bus: events.NewBus()}

	settings, err := shared.NewSettings(cfg.Queue, cfg.Announcer.DuckFactor)
	if err != nil {
		return nil, err
	}

	store, err := repositories.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	e.closers = append(e.closers, store.Close)

	res, err := resolver.New(resolver.NewHTTPFetcher(r.httpClient), resolver.Options{
		Dir:               cfg.Resolver.DownloadDir,
		AttemptsPerSecond: cfg.Resolver.AttemptsPerSecond,
		Burst:             cfg.Resolver.Burst,
		Logger:            r.logger,
	})
	if err != nil {
		e.close(r)
		return nil, err
	}

	device, err := r.openDevice(ctx, simulate)
	if err != nil {
		e.close(r)
		return nil, err
	}
	e.closers = append(e.closers, device.Close)

	var announcer player.Announcer
	if cfg.Announcer.Command != "" {
		announcer = player.NewSpeech(cfg.Announcer.Command, cfg.Announcer.Args)
	}

	if cfg.Events.RedisURL != "" {
		pub, err := events.NewRedisPublisher(ctx, cfg.Events.RedisURL, cfg.Events.Channel, r.logger)
		if err != nil {
			e.close(r)
			return nil, err
		}
		sub, cancel := e.bus.Subscribe(redisBuffer)
		go pub.Forward(ctx, sub)
		e.closers = append(e.closers, func() error { cancel(); return nil }, pub.Close)
	}

	e.sched = scheduler.New(scheduler.Options{
		TickInterval: cfg.Scheduler.TickInterval.Duration,
		SettleDelay:  cfg.Scheduler.SettleDelay.Duration,
		EndPosition:  cfg.Scheduler.EndPosition,
	}, scheduler.Deps{
		Device:    device,
		Resolver:  res,
		Settings:  settings,
		Announcer: announcer,
		Store:     store,
		Publisher: e.bus,
		Logger:    r.logger,
	})

	client := catalog.NewClient(ctx, cfg.Catalog, r.httpClient, r.logger)
	e.dispatcher = actions.New(e.sched, client, actions.Options{
		PageSize:  cfg.Queue.PageSize,
		Publisher: e.bus,
		Logger:    r.logger,
	})

	go func() {
		if err := e.sched.Run(ctx); err != nil {
			r.logger.Error("scheduler exited", "error", err)
		}
	}()

	return e, nil
}

// openDevice returns the simulated player or an mpv connection.
func (r *Runner) openDevice(ctx context.Context, simulate bool) (player.Device, error) {
	cfg := r.config.Player
	if simulate || cfg.Backend == "simulated" {
		r.logger.Info("using simulated player", "track_length", cfg.SimulatedTrack)
		return player.NewSimulated(cfg.SimulatedTrack.Duration, cfg.InitialVolume), nil
	}

	mpv := player.NewMPV(player.MPVConfig{
		SocketPath:     cfg.SocketPath,
		StartInstance:  cfg.StartInstance,
		ConnectTimeout: cfg.ConnectTimeout.Duration,
		Logger:         r.logger,
	})
	if err := mpv.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: mpv: %w", shared.ErrServiceUnavailable, err)
	}
	if err := mpv.SetVolume(ctx, cfg.InitialVolume); err != nil {
		r.logger.Warn("failed to set initial volume", "error", err)
	}
	return mpv, nil
}

// watch applies queue settings from config reloads until ctx is done.
func (e *engine) watch(ctx context.Context, r *Runner) {
	err := shared.WatchConfig(ctx, r.configPath, r.logger, func(cfg *shared.Config) {
		settings, err := shared.NewSettings(cfg.Queue, cfg.Announcer.DuckFactor)
		if err != nil {
			r.logger.Warn("ignoring reloaded settings", "error", err)
			return
		}
		_, err = e.sched.Submit(ctx, func(s *scheduler.State) (any, error) {
			s.Apply(*settings)
			return nil, nil
		})
		if err != nil {
			r.logger.Warn("failed to apply reloaded settings", "error", err)
			return
		}
		ev := events.New(events.SettingsChanged, nil, 0)
		ev.Detail = "reloaded"
		e.bus.Publish(ev)
	})
	if err != nil {
		r.logger.Error("config watcher stopped", "error", err)
	}
}

// stop waits for the scheduler to finish its final snapshot and releases resources.
func (e *engine) stop(r *Runner) {
	if e.sched != nil {
		<-e.sched.Done()
	}
	e.close(r)
}

func (e *engine) close(r *Runner) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			r.logger.Warn("failed to close resource", "error", err)
		}
	}
	e.closers = nil
}
