// Package app assembles the chat client's services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nfrund/livechat/internal/chat"
	"github.com/nfrund/livechat/internal/composer"
	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/database"
	"github.com/nfrund/livechat/internal/events"
	"github.com/nfrund/livechat/internal/feed"
	"github.com/nfrund/livechat/internal/namestore"
	"github.com/nfrund/livechat/internal/pubsub"
	"github.com/nfrund/livechat/internal/session"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
)

// App holds the wired services for one chat session.
type App struct {
	Config     *config.Config
	Bus        pubsub.Bus
	Names      *namestore.Store
	Session    *session.Bootstrap
	Feed       *feed.Feed
	Composer   *composer.Composer
	Controller *chat.Controller

	tracing tracing
}

type tracing struct {
	tracer   trace.Tracer
	enabled  bool
	shutdown func()
}

// New builds every service from cfg. dialer may be nil to use SurrealDB.
func New(ctx context.Context, cfg *config.Config, dialer session.Dialer) (*App, error) {
	if dialer == nil {
		dialer = database.NewDialer()
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, dialer)
	do.Provide(injector, func(do.Injector) (tracing, error) {
		return provideTracing(ctx)
	})
	do.Provide(injector, provideBus)
	do.Provide(injector, provideNames)
	do.Provide(injector, provideSession)
	do.Provide(injector, provideFeed)
	do.Provide(injector, provideComposer)
	do.Provide(injector, provideController)

	controller, err := do.Invoke[*chat.Controller](injector)
	if err != nil {
		return nil, fmt.Errorf("assemble services: %w", err)
	}

	return &App{
		Config:     cfg,
		Bus:        do.MustInvoke[pubsub.Bus](injector),
		Names:      do.MustInvoke[*namestore.Store](injector),
		Session:    do.MustInvoke[*session.Bootstrap](injector),
		Feed:       do.MustInvoke[*feed.Feed](injector),
		Composer:   do.MustInvoke[*composer.Composer](injector),
		Controller: controller,
		tracing:    do.MustInvoke[tracing](injector),
	}, nil
}

func provideTracing(ctx context.Context) (tracing, error) {
	cfg := pubsub.LoadTracingConfigFromEnv()
	tracer, shutdown, err := pubsub.SetupOTel(ctx, cfg)
	if err != nil {
		return tracing{}, fmt.Errorf("setup tracing: %w", err)
	}
	return tracing{tracer: tracer, enabled: cfg.Enabled, shutdown: shutdown}, nil
}

func provideBus(i do.Injector) (pubsub.Bus, error) {
	t := do.MustInvoke[tracing](i)
	if !t.enabled {
		return pubsub.NewWatermillBridge(), nil
	}
	return pubsub.NewWatermillBridge(pubsub.WithTracer(t.tracer)), nil
}

func provideNames(i do.Injector) (*namestore.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return OpenNames(cfg)
}

func provideSession(i do.Injector) (*session.Bootstrap, error) {
	cfg := do.MustInvoke[*config.Config](i)
	dialer := do.MustInvoke[session.Dialer](i)
	bus := do.MustInvoke[pubsub.Bus](i)
	return session.New(cfg.Runtime, dialer, bus), nil
}

func provideFeed(i do.Injector) (*feed.Feed, error) {
	cfg := do.MustInvoke[*config.Config](i)
	bus := do.MustInvoke[pubsub.Bus](i)
	return feed.New(bus, cfg.GetNamespaceID()), nil
}

func provideComposer(i do.Injector) (*composer.Composer, error) {
	bus := do.MustInvoke[pubsub.Bus](i)
	sess := do.MustInvoke[*session.Bootstrap](i)
	names := do.MustInvoke[*namestore.Store](i)
	f := do.MustInvoke[*feed.Feed](i)
	return composer.New(sess, names, f, bus, f.Path()), nil
}

func provideController(i do.Injector) (*chat.Controller, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return chat.NewController(chat.Dependencies{
		Bus:       do.MustInvoke[pubsub.Bus](i),
		Session:   do.MustInvoke[*session.Bootstrap](i),
		Feed:      do.MustInvoke[*feed.Feed](i),
		Composer:  do.MustInvoke[*composer.Composer](i),
		Names:     do.MustInvoke[*namestore.Store](i),
		NoticeTTL: cfg.GetNoticeTTL(),
	}), nil
}

// OpenNames opens the display-name store selected by the settings. The
// badger store keeps its directory next to the default JSON file path.
func OpenNames(cfg config.Provider) (*namestore.Store, error) {
	switch cfg.GetNameStore() {
	case config.NameStoreBadger:
		dir := cfg.GetNameStorePath()
		if filepath.Ext(dir) == ".json" {
			dir = strings.TrimSuffix(dir, ".json") + ".badger"
		}
		backend, err := namestore.OpenBadger(dir)
		if err != nil {
			return nil, err
		}
		return namestore.New(backend), nil
	case config.NameStoreFile, "":
		return namestore.New(namestore.NewFileBackend(afero.NewOsFs(), cfg.GetNameStorePath())), nil
	default:
		return nil, fmt.Errorf("unknown name store %q", cfg.GetNameStore())
	}
}

// Start starts the controller and, for the file store, follows name changes
// made by other running clients.
func (a *App) Start(ctx context.Context) error {
	if err := a.Controller.Start(ctx); err != nil {
		return err
	}

	err := a.Names.Watch(ctx, func(name string) {
		if err := pubsub.Publish(ctx, a.Bus, events.Name, events.NameEvent{Name: name}); err != nil {
			slog.WarnContext(ctx, "Failed to publish name change", "error", err)
		}
	})
	switch {
	case errors.Is(err, namestore.ErrNotWatchable):
		slog.DebugContext(ctx, "Display name store is not watchable")
	case err != nil:
		slog.WarnContext(ctx, "Failed to watch display name store", "error", err)
	}
	return nil
}

// Close shuts services down in dependency order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Controller.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close controller: %w", err))
	}
	if err := a.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	if err := a.Names.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close name store: %w", err))
	}
	if a.tracing.shutdown != nil {
		a.tracing.shutdown()
	}
	return errors.Join(errs...)
}
