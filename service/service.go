package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-request/cache"
	"github.com/saiset-co/sai-request/client"
	"github.com/saiset-co/sai-request/config"
	"github.com/saiset-co/sai-request/guard"
	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/notify"
	"github.com/saiset-co/sai-request/storage"
	"github.com/saiset-co/sai-request/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// Host carries the UI-side collaborators. Every field may be nil.
type Host struct {
	Navigator types.Navigator
	Loading   types.LoadingIndicator
	Progress  types.ProgressIndicator
	Notifier  types.Notifier
	Clock     types.Clock
}

type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	container       *Container
	log             *logger.Manager
	done            chan struct{}
	wg              sync.WaitGroup
	stopOnce        sync.Once
	stopErr         error
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration
}

// NewService loads the YAML config at configPath and assembles every
// component.
func NewService(ctx context.Context, configPath string, host Host) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager, host)
}

// NewServiceFromConfig assembles a service from an in-memory config.
func NewServiceFromConfig(ctx context.Context, cfg *types.ServiceConfig, host Host) (*Service, error) {
	configManager, err := config.NewStaticManager(ctx, cfg)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager, host)
}

func newService(ctx context.Context, configManager *config.ConfigurationManager, host Host) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		container:       NewContainer(),
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
	}

	s.state.Store(StateStopped)

	if err := s.registerProviders(serviceCtx, configManager, host); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	return s, nil
}

func (s *Service) registerProviders(ctx context.Context, configManager *config.ConfigurationManager, host Host) error {
	c := s.container
	c.SetConfig(configManager)

	cfg := configManager.GetConfig()

	loggerManager, err := logger.NewManager(ctx, configManager)
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}
	c.Logger.Store(loggerManager)
	s.log = loggerManager

	metricsManager, err := metrics.NewManager(ctx, configManager, loggerManager.Named("metrics"))
	if err != nil {
		return types.WrapError(err, "failed to register metrics manager")
	}
	c.Metrics.Store(metricsManager)

	clock := host.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	var cacheManager types.CacheManager
	cacheManager, err = cache.NewCacheManager(ctx, configManager, loggerManager.Named("cache"), metricsManager, clock)
	switch {
	case errors.Is(err, types.ErrCacheIsDisabled):
		loggerManager.Info("Response cache disabled")
		cacheManager = nil
	case err != nil:
		return types.WrapError(err, "failed to register cache manager")
	default:
		c.SetCache(cacheManager)
	}

	storageManager, err := storage.NewManager(ctx, configManager, loggerManager.Named("storage"))
	if err != nil {
		return types.WrapError(err, "failed to register storage manager")
	}
	c.SetStorage(storageManager)

	sinks := []types.Notifier{notify.NewLoggerNotifier(loggerManager.Named("notice")), host.Notifier}
	if cfg.Notify != nil && cfg.Notify.WebSocket != nil && cfg.Notify.WebSocket.Enabled {
		ws := notify.NewWebSocketNotifier(ctx, loggerManager.Named("websocket"), metricsManager, cfg.Notify.WebSocket)
		c.WebSocket.Store(ws)
		sinks = append(sinks, ws)
	}
	fanout := notify.NewFanout(loggerManager.Named("notify"), sinks...)
	c.Notifier.Store(fanout)

	requestClient, err := client.NewManager(ctx, configManager, loggerManager.Named("client"), metricsManager, cacheManager, storageManager, client.Collaborators{
		Notifier:  fanout,
		Navigator: host.Navigator,
		Loading:   host.Loading,
	})
	if err != nil {
		return types.WrapError(err, "failed to register request client")
	}
	c.Client.Store(requestClient)

	guardConfig := cfg.Guard
	if guardConfig == nil {
		guardConfig = &types.GuardConfig{}
	}

	session := guard.NewSession(loggerManager.Named("session"), requestClient, storageManager, guard.Endpoints{
		UserInfo:    guardConfig.UserInfoURL,
		Permissions: guardConfig.PermissionsURL,
		Login:       guardConfig.LoginURL,
		Logout:      guardConfig.LogoutURL,
	})
	c.Session.Store(session)
	c.Guard.Store(guard.New(loggerManager.Named("guard"), session, fanout, host.Progress, guardConfig))

	return nil
}

// Start brings every component up in dependency order.
func (s *Service) Start() (err error) {
	if !s.transitionState(StateStopped, StateStarting) {
		s.log.Warn("Service is already running")
		return types.ErrServiceIsRunning
	}

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("service panic: %v", r)
			s.log.Error("Service start panic", zap.Stack(string(buf[:n])))
			s.setState(StateStopped)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err = s.startComponents(ctx); err != nil {
		_ = s.stopComponents()
		s.setState(StateStopped)
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)

	s.wg.Add(1)
	go s.contextMonitor()

	s.log.Info("Service started successfully")
	return nil
}

// Run starts the service and blocks until a shutdown signal or context
// cancellation, then stops every component.
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	s.setupSignalHandling()

	<-s.done

	err := s.shutdown()
	s.wg.Wait()
	s.setState(StateStopped)

	s.log.Info("Service stopped gracefully")
	return err
}

// Stop cancels the service context and shuts components down.
func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServiceIsNotRunning
	}

	s.log.Info("Stopping service...")
	s.cancel()
	s.wg.Wait()

	err := s.shutdown()
	s.setState(StateStopped)

	return err
}

func (s *Service) shutdown() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stopComponents()
	})
	return s.stopErr
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) Client() *client.Client {
	return s.container.Client.Load()
}

func (s *Service) Guard() *guard.Guard {
	return s.container.Guard.Load()
}

func (s *Service) Session() *guard.Session {
	return s.container.Session.Load()
}

func (s *Service) Metrics() types.MetricsManager {
	return s.container.Metrics.Load()
}

func (s *Service) Logger() types.Logger {
	return s.log
}

// SetLogLevel changes the level of every component logger at runtime.
func (s *Service) SetLogLevel(level string) {
	s.log.SetLevel(level)
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) {
	s.state.Store(newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents(ctx context.Context) error {
	for _, component := range s.container.lifecycles() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := component.manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+component.name)
		}

		s.log.Debug("Component started", zap.String("component", component.name))
	}

	s.log.Info("All components started successfully")
	return nil
}

// stopComponents stops the request client first, then everything else in
// parallel, and config last.
func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error
	var configManager types.LifecycleManager

	components := s.container.lifecycles()

	stopOne := func(component namedLifecycle) error {
		if !component.manager.IsRunning() {
			return nil
		}
		if err := component.manager.Stop(); err != nil {
			s.log.Error("Failed to stop component", zap.String("component", component.name), zap.Error(err))
			return err
		}
		return nil
	}

	rest := make([]namedLifecycle, 0, len(components))
	for _, component := range components {
		switch component.name {
		case "client":
			if err := stopOne(component); err != nil {
				errs = append(errs, err)
			}
		case "config":
			configManager = component.manager
		case "logger":
		default:
			rest = append(rest, component)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, component := range rest {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				return stopOne(component)
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			s.log.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errs = append(errs, err)
		}
	}

	if lm := s.container.Logger.Load(); lm != nil && lm.IsRunning() {
		if err := lm.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if configManager != nil && configManager.IsRunning() {
		if err := configManager.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errors.Join(errs...))
	}

	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			s.log.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}
		case <-s.ctx.Done():
		}
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case errors.Is(err, context.Canceled):
		s.log.Info("Service shutdown: context cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		s.log.Warn("Service shutdown: context deadline exceeded")
	default:
		s.log.Info("Service shutdown: context done")
	}
}
