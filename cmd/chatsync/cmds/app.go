package cmds

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/chatsync/pkg/api"
	"github.com/go-go-golems/chatsync/pkg/events"
	"github.com/go-go-golems/chatsync/pkg/localstore"
	"github.com/go-go-golems/chatsync/pkg/render"
	"github.com/go-go-golems/chatsync/pkg/service"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var _ service.Persistence = (*localstore.Store)(nil)

const DefaultServer = "http://localhost:8000"

// AddPersistentFlags registers the flags every command shares. They are bound
// to viper, so each one can also be set in the config file or as a
// CHATSYNC_* environment variable.
func AddPersistentFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.String("server", DefaultServer, "Base URL of the chat server")
	flags.Duration("timeout", api.DefaultTimeout, "Timeout for persistence requests")
	flags.Duration("completion-timeout", api.DefaultCompletionTimeout, "Timeout for a chat completion")
	flags.Bool("allow-insecure", false, "Allow plain http and private addresses for the server")
	flags.Bool("offline", false, "Keep chats in the local database instead of the server, without completions")
	flags.String("db", "", "Path of the local database (default <config dir>/chatsync/chatsync.db)")
	flags.String("mirror", "", "Mirror the loaded state into this SQLite file")
	flags.Float64("temperature", 0, "Temperature for completions, overrides the saved setting")
	flags.Int("max-tokens", 0, "Maximum tokens for completions, overrides the saved setting")
	flags.BoolP("yes", "y", false, "Do not ask for confirmation")
	flags.Bool("full-redraw", false, "Redraw the chat list and the whole chat on every change")
	flags.Bool("markdown", true, "Render assistant messages as markdown")
}

// AppSettings is the resolved configuration of one chatsync invocation.
type AppSettings struct {
	Server            string        `yaml:"server"`
	Timeout           time.Duration `yaml:"timeout"`
	CompletionTimeout time.Duration `yaml:"completion-timeout"`
	AllowInsecure     bool          `yaml:"allow-insecure"`
	Offline           bool          `yaml:"offline"`
	DB                string        `yaml:"db"`
	Mirror            string        `yaml:"mirror"`
	Temperature       float64       `yaml:"temperature,omitempty"`
	MaxTokens         int           `yaml:"max-tokens,omitempty"`
	Yes               bool          `yaml:"yes"`
	FullRedraw        bool          `yaml:"full-redraw"`
	Markdown          bool          `yaml:"markdown"`
}

func NewAppSettingsFromViper() *AppSettings {
	ret := &AppSettings{
		Server:            viper.GetString("server"),
		Timeout:           viper.GetDuration("timeout"),
		CompletionTimeout: viper.GetDuration("completion-timeout"),
		AllowInsecure:     viper.GetBool("allow-insecure"),
		Offline:           viper.GetBool("offline"),
		DB:                viper.GetString("db"),
		Mirror:            viper.GetString("mirror"),
		Temperature:       viper.GetFloat64("temperature"),
		MaxTokens:         viper.GetInt("max-tokens"),
		Yes:               viper.GetBool("yes"),
		FullRedraw:        viper.GetBool("full-redraw"),
		Markdown:          viper.GetBool("markdown"),
	}
	if ret.Server == "" {
		ret.Server = DefaultServer
	}
	if ret.DB == "" {
		ret.DB = defaultDBPath()
	}
	return ret
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chatsync.db"
	}
	return filepath.Join(dir, "chatsync", "chatsync.db")
}

// CompletionOptions returns the command line overrides. Zero values are not
// overrides.
func (s *AppSettings) CompletionOptions() api.CompletionOptions {
	ret := api.CompletionOptions{}
	if s.Temperature > 0 {
		temperature := s.Temperature
		ret.Temperature = &temperature
	}
	if s.MaxTokens > 0 {
		maxTokens := s.MaxTokens
		ret.MaxTokens = &maxTokens
	}
	return ret
}

// App wires the store, the service and the terminal together. Changes of the
// store travel through an event router to the terminal.
type App struct {
	Settings *AppSettings
	Store    *store.Store
	Service  *service.Service
	Terminal *render.Terminal

	live    atomic.Bool
	client  *api.Client
	local   *localstore.Store
	router  *events.EventRouter
	cancel  context.CancelFunc
	eg      *errgroup.Group
	closers []io.Closer
}

type AppOption func(*appConfig)

type appConfig struct {
	out       io.Writer
	confirmer service.Confirmer
	persist   service.Persistence
	completer service.Completer
	now       func() time.Time
}

// WithOutput sets where the terminal draws. The default is stdout.
func WithOutput(out io.Writer) AppOption {
	return func(c *appConfig) {
		c.out = out
	}
}

func WithConfirmer(confirmer service.Confirmer) AppOption {
	return func(c *appConfig) {
		c.confirmer = confirmer
	}
}

func WithClock(now func() time.Time) AppOption {
	return func(c *appConfig) {
		c.now = now
	}
}

// WithBackend replaces the persistence and completion backends chosen from
// the settings.
func WithBackend(persist service.Persistence, completer service.Completer) AppOption {
	return func(c *appConfig) {
		c.persist = persist
		c.completer = completer
	}
}

func NewApp(ctx context.Context, settings *AppSettings, options ...AppOption) (*App, error) {
	cfg := &appConfig{out: os.Stdout, now: time.Now}
	for _, o := range options {
		o(cfg)
	}
	if cfg.confirmer == nil {
		if settings.Yes {
			cfg.confirmer = service.AlwaysConfirm{}
		} else {
			cfg.confirmer = NewTTYConfirmer()
		}
	}

	app := &App{Settings: settings}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	if cfg.persist == nil {
		if err := app.openBackend(); err != nil {
			return nil, err
		}
		if app.local != nil {
			cfg.persist = app.local
		} else {
			cfg.persist = app.client
			cfg.completer = app.client
		}
	}

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return nil, errors.Wrap(err, "creating event router")
	}
	app.router = router

	app.Store = store.New(store.WithClock(cfg.now))
	app.Terminal = render.NewTerminal(cfg.out, app.Store,
		render.WithFullRedraw(settings.FullRedraw),
		render.WithMarkdown(settings.Markdown),
	)
	router.AddChangeHandler("terminal", func(_ context.Context, change events.Change) error {
		if !app.live.Load() {
			return nil
		}
		if err := app.Terminal.PublishChange(change); err != nil {
			// a failed redraw is not retried, the next change redraws anyway
			log.Warn().Err(err).Str("change", change.String()).Msg("could not draw change")
		}
		return nil
	})

	routerCtx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	app.eg, routerCtx = errgroup.WithContext(routerCtx)
	app.eg.Go(func() error {
		return router.Run(routerCtx)
	})
	select {
	case <-router.Running():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	app.Store.SetSink(router.Sink())

	app.Service = service.New(app.Store, cfg.persist, cfg.completer,
		service.WithNotifier(app.Terminal),
		service.WithConfirmer(cfg.confirmer),
		service.WithClock(cfg.now),
		service.WithCompletionOptions(settings.CompletionOptions()),
		service.WithCompletionTimeout(settings.CompletionTimeout),
	)

	ok = true
	return app, nil
}

func (a *App) openBackend() error {
	if a.Settings.Offline {
		if err := os.MkdirAll(filepath.Dir(a.Settings.DB), 0o755); err != nil {
			return errors.Wrap(err, "creating database directory")
		}
		local, err := localstore.Open(a.Settings.DB)
		if err != nil {
			return err
		}
		a.local = local
		a.closers = append(a.closers, local)
		log.Debug().Str("db", a.Settings.DB).Msg("working offline")
		return nil
	}

	client, err := api.NewClient(a.Settings.Server,
		api.WithTimeout(a.Settings.Timeout),
		api.WithCompletionTimeout(a.Settings.CompletionTimeout),
		api.WithAllowInsecure(a.Settings.AllowInsecure || api.IsLocalHost(a.Settings.Server)),
	)
	if err != nil {
		return errors.Wrap(err, "creating chat server client")
	}
	a.client = client
	return nil
}

// SetLive turns drawing store changes to the terminal on or off. A new App
// is not live, so one-shot commands only print what they are asked for.
func (a *App) SetLive(live bool) {
	a.live.Store(live)
}

// Load fills the store and, when a mirror is configured, copies the loaded
// state into it.
func (a *App) Load(ctx context.Context) error {
	if err := a.Service.Load(ctx); err != nil {
		return err
	}
	if a.Settings.Mirror == "" {
		return nil
	}

	mirror, err := localstore.Open(a.Settings.Mirror)
	if err != nil {
		return errors.Wrap(err, "opening mirror")
	}
	defer func() {
		_ = mirror.Close()
	}()
	if err := mirror.Mirror(ctx, a.Store.Chats(), a.Store.Presets(), a.Service.Settings()); err != nil {
		return errors.Wrap(err, "mirroring loaded state")
	}
	log.Info().Str("mirror", a.Settings.Mirror).Int("chats", a.Store.ChatCount()).Msg("mirrored loaded state")
	return nil
}

func (a *App) Close() error {
	if a.router != nil {
		_ = a.router.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.eg != nil {
		if err := a.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("event router stopped with an error")
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close backend")
		}
	}
	a.closers = nil
	return nil
}

// withApp builds the App from the current configuration, loads it, runs fn
// and closes the App. With live set, changes made by fn are drawn as they
// happen.
func withApp(cmd *cobra.Command, live bool, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := NewApp(ctx, NewAppSettingsFromViper(), WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()
	if err := app.Load(ctx); err != nil {
		return err
	}
	app.SetLive(live)
	return fn(ctx, app)
}
