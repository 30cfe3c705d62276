package cmd

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/iamgilwell/proctopo/internal/config"
	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/notification"
	"github.com/iamgilwell/proctopo/internal/notify"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/refresh"
	"github.com/iamgilwell/proctopo/internal/server"
)

// runtime is one running engine with its refresh sources and optional HTTP
// server, shared by the interactive and serve commands.
type runtime struct {
	cfg        *config.Config
	logger     *notification.Logger
	auditor    *notification.Auditor
	bus        *notify.Bus
	eng        *engine.Engine
	controller *refresh.Controller
	server     *server.Server
}

func newRuntime(cfg *config.Config, console bool) (*runtime, error) {
	logger, err := notification.NewLogger(cfg.Notifications.LogFile, cfg.Notifications.ColorEnabled, cfg.Notifications.Verbose, console)
	if err != nil {
		return nil, err
	}

	auditor, err := notification.NewAuditor(cfg.Notifications.AuditFile)
	if err != nil {
		logger.Close()
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, auditor: auditor}
	if err := rt.wire(); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) wire() error {
	cfg := rt.cfg
	log := rt.logger.Logger

	order, err := cfg.SortKeys()
	if err != nil {
		return err
	}

	svc, err := query.NewSystemService(cfg.Query.Protocols, cfg.Query.Sockets, log.With("component", "query"))
	if err != nil {
		return err
	}

	rt.eng, err = engine.New(order, log.With("component", "engine"), rt.auditor)
	if err != nil {
		return err
	}

	rt.bus = notify.NewBus(log.With("component", "notify"))
	rt.controller = refresh.New(svc, rt.eng, refresh.Options{
		Timeout: cfg.Query.Timeout,
		Logger:  log.With("component", "refresh"),
	})

	if cfg.Server.Enabled {
		rt.server = server.New(rt.eng, rt.bus, rt.controller, server.Options{
			Name:     cfg.Server.Name,
			Address:  cfg.Server.Address,
			Port:     cfg.Server.Port,
			InfoFile: cfg.Server.InfoFile,
			Metrics:  cfg.Server.Metrics,
			Logger:   log.With("component", "server"),
		})
	}
	return nil
}

// start launches the controller, the refresh sources and the server on g.
func (rt *runtime) start(ctx context.Context, g *errgroup.Group) error {
	cfg := rt.cfg
	log := rt.logger.Logger

	g.Go(func() error { return rt.controller.Run(ctx, rt.bus) })

	if cfg.Refresh.Interval > 0 {
		ticker := notify.NewTicker(rt.bus, cfg.Refresh.Interval)
		g.Go(func() error { return ticker.Start(ctx) })
	}

	if cfg.Refresh.TriggerFile != "" {
		trigger, err := notify.NewFileTrigger(rt.bus, cfg.Refresh.TriggerFile, log.With("component", "trigger"))
		if err != nil {
			return fmt.Errorf("refresh trigger: %w", err)
		}
		g.Go(func() error { return trigger.Start(ctx) })
	}

	if rt.server != nil {
		g.Go(func() error { return rt.server.Start(ctx) })
	}

	// The bus subscription may not exist yet, so the first fetch goes to the
	// controller directly.
	if cfg.Refresh.OnStart {
		log.Debug("initial refresh", "source", notify.SourceStart)
		rt.controller.Refresh(ctx)
	}
	return nil
}

func (rt *runtime) close() {
	rt.auditor.Close()
	rt.logger.Close()
}

// ignoreCanceled treats a clean shutdown as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
