package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/routeflow/internal/policy"
	configpkg "github.com/drblury/routeflow/internal/runtime/config"
	errspkg "github.com/drblury/routeflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
	"github.com/drblury/routeflow/transport"
	_ "github.com/drblury/routeflow/transport/transports"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

const httpShutdownTimeout = 5 * time.Second

// ServiceDependencies holds optional collaborators. Zero values select the
// defaults.
type ServiceDependencies struct {
	// Middlewares are appended after the default middleware chain.
	Middlewares []MiddlewareRegistration
	// DisableDefaultMiddlewares skips the default middleware chain.
	DisableDefaultMiddlewares bool
	// TransportBuilder replaces the transport registry lookup.
	TransportBuilder transport.Builder
	// Policies replaces loading policies from the configured sources.
	Policies *policy.Registry
	// Hooks observe every resolution pass.
	Hooks ResolutionHooks
	// Registerer receives the rule and router metrics. Defaults to the
	// Prometheus default registerer.
	Registerer prometheus.Registerer
}

// Service wires a Watermill router, a transport, the policy registry and the
// trigger scheduler.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport    transport.Transport
	publisher    message.Publisher
	subscriber   message.Subscriber
	capabilities transport.Capabilities
	router       *message.Router

	policies *policy.Registry
	sources  policy.Sources
	hooks    ResolutionHooks
	metrics  *resolveMetrics

	registerer prometheus.Registerer

	scheduler     gocron.Scheduler
	schedulerOnce sync.Once
	schedulerErr  error
	jobs          []configpkg.ScheduledJob
	jobsMu        sync.Mutex

	handlers   []*HandlerInfo
	handlersMu sync.RWMutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a Service and panics when construction fails. Use
// TryNewService to handle the error instead.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService validates conf, builds the transport, loads the policies,
// registers the configured scheduled jobs and the middleware chain. Register
// handlers on the returned Service before calling Start.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := errspkg.NewConfigValidationError(conf.Validate()); err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating event service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf.String(),
	})

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	s := &Service{
		Conf:       conf,
		Logger:     log,
		hooks:      deps.Hooks,
		registerer: registerer,
		sources: policy.Sources{
			Embedded: !conf.DisableEmbeddedPolicies,
			Paths:    conf.PolicyPaths,
		},
	}

	if err := s.initPolicies(deps.Policies); err != nil {
		return nil, err
	}

	metrics, err := newResolveMetrics(registerer)
	if err != nil {
		return nil, err
	}
	s.metrics = metrics

	build := deps.TransportBuilder
	if build == nil {
		build = transport.Build
	}
	tr, err := build(ctx, conf, wmLogger)
	if err != nil {
		return nil, err
	}
	s.transport = tr
	s.publisher = tr.Publisher
	s.subscriber = tr.Subscriber
	s.capabilities = transport.GetCapabilities(conf.PubSubSystem)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	s.scheduler = scheduler
	for _, job := range conf.ScheduledJobs {
		if err := s.Schedule(job); err != nil {
			_ = scheduler.Shutdown()
			_ = tr.Close()
			return nil, err
		}
	}

	if conf.MetricsEnabled && conf.MetricsPort > 0 {
		s.registerAdminHandlers(conf.MetricsPort)
	}

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = scheduler.Shutdown()
		_ = tr.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) initPolicies(provided *policy.Registry) error {
	if provided != nil {
		s.policies = provided
	} else {
		loaded, err := s.sources.Load()
		if err != nil {
			return fmt.Errorf("load policies: %w", err)
		}
		s.policies = policy.NewRegistry(loaded...)
	}
	s.Logger.Info("Policies loaded", loggingpkg.LogFields{"policies": s.policies.Names()})
	return s.checkDefaultPolicies()
}

func (s *Service) checkDefaultPolicies() error {
	if _, err := s.policies.Chain(s.Conf.DefaultPolicies...); err != nil {
		return errspkg.NewConfigValidationError(fmt.Errorf("default_policies: %w", err))
	}
	return nil
}

// Policies returns the live policy registry. Replacing its contents takes
// effect for the next message.
func (s *Service) Policies() *policy.Registry {
	return s.policies
}

// Capabilities reports what the configured transport supports.
func (s *Service) Capabilities() transport.Capabilities {
	return s.capabilities
}

// Publisher exposes the transport publisher.
func (s *Service) Publisher() message.Publisher {
	return s.publisher
}

// Start runs the router, the scheduler, the policy watcher and the HTTP
// servers until ctx is cancelled, the router stops or one of them fails.
func (s *Service) Start(ctx context.Context) error {
	if err := s.checkDefaultPolicies(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	if s.Conf.WatchPolicies {
		watcher, err := policy.NewWatcher(s.sources, s.policies, s.Logger)
		if err != nil {
			return fmt.Errorf("watch policies: %w", err)
		}
		group.Go(func() error { return watcher.Run(ctx) })
	}

	s.scheduler.Start()
	group.Go(func() error {
		<-ctx.Done()
		return s.shutdownScheduler()
	})

	s.startHTTPServers(ctx, group)

	group.Go(func() error {
		defer cancel()
		return routerRun(s.router, ctx)
	})

	return group.Wait()
}

// Close stops the router and the scheduler and closes the transport.
func (s *Service) Close() error {
	return errors.Join(
		s.router.Close(),
		s.shutdownScheduler(),
		s.transport.Close(),
	)
}

func (s *Service) shutdownScheduler() error {
	s.schedulerOnce.Do(func() {
		s.schedulerErr = s.scheduler.Shutdown()
	})
	return s.schedulerErr
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the server listening on port. Servers
// start with Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}
	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}
	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers(ctx context.Context, group *errgroup.Group) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
}
