package runtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/routeflow/internal/policy"
	configpkg "github.com/drblury/routeflow/internal/runtime/config"
	errspkg "github.com/drblury/routeflow/internal/runtime/errors"
	"github.com/drblury/routeflow/transport"
	"github.com/drblury/routeflow/transport/transporttest"
)

func TestTryNewServiceRequiresConfigAndLogger(t *testing.T) {
	_, err := TryNewService(nil, newTestLogger(), context.Background(), ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = TryNewService(&configpkg.Config{}, nil, context.Background(), ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)
}

func TestTryNewServiceRejectsInvalidConfig(t *testing.T) {
	conf := &configpkg.Config{PubSubSystem: "kafka"}
	_, err := TryNewService(conf, newTestLogger(), context.Background(), ServiceDependencies{})

	var cfgErr *errspkg.ConfigValidationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "kafka: brokers are required")
}

func TestTryNewServiceUsesTransportBuilder(t *testing.T) {
	env := newTestService(t, nil)

	assert.Same(t, env.publisher, env.svc.Publisher())
	assert.Equal(t, "channel", env.svc.Capabilities().Name)
	assert.Equal(t, []string{"order-routing", "tracking-defaults"}, env.svc.Policies().Names())
}

func TestTryNewServiceReturnsTransportError(t *testing.T) {
	boom := errors.New("broker down")
	_, err := TryNewService(&configpkg.Config{PubSubSystem: "channel"}, newTestLogger(), context.Background(), ServiceDependencies{
		Policies: policy.NewRegistry(),
		TransportBuilder: func(context.Context, transport.Config, watermill.LoggerAdapter) (transport.Transport, error) {
			return transport.Transport{}, boom
		},
	})
	assert.ErrorIs(t, err, boom)
}

func TestTryNewServiceUnknownTransport(t *testing.T) {
	_, err := TryNewService(&configpkg.Config{PubSubSystem: "gcp", DisableEmbeddedPolicies: true}, newTestLogger(), context.Background(), ServiceDependencies{})
	assert.ErrorIs(t, err, transport.ErrUnknownTransport)
}

func TestTryNewServiceBuildsChannelTransportFromRegistry(t *testing.T) {
	svc, err := TryNewService(&configpkg.Config{PubSubSystem: "channel"}, newTestLogger(), context.Background(), ServiceDependencies{
		Registerer: newTestRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	_, ok := svc.Policies().Get(policy.DefaultPolicyName)
	assert.True(t, ok, "embedded defaults are loaded")
	assert.True(t, svc.Capabilities().SupportsOrdering)
}

func TestTryNewServiceLoadsPolicyPaths(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`policies:
  - name: file-policy
    rules:
      - name: mark
        then:
          - {op: set, key: file.Loaded, value: "yes"}
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), doc, 0o600))

	env := newTestService(t, func(c *configpkg.Config, d *ServiceDependencies) {
		d.Policies = nil
		c.PolicyPaths = []string{dir}
		c.DefaultPolicies = []string{policy.DefaultPolicyName, "file-policy"}
	})

	assert.Equal(t, []string{"file-policy", policy.DefaultPolicyName}, env.svc.Policies().Names())
}

func TestTryNewServiceRejectsUnknownDefaultPolicy(t *testing.T) {
	_, err := TryNewService(&configpkg.Config{PubSubSystem: "channel", DefaultPolicies: []string{"missing"}}, newTestLogger(), context.Background(), ServiceDependencies{
		Policies:         policy.NewRegistry(),
		TransportBuilder: stubBuilder(nil, nil),
		Registerer:       newTestRegistry(),
	})

	assert.ErrorIs(t, err, policy.ErrPolicyNotFound)
	var cfgErr *errspkg.ConfigValidationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewServicePanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		NewService(nil, newTestLogger(), context.Background(), ServiceDependencies{})
	})
}

func TestNewServiceRegistersCustomMiddlewares(t *testing.T) {
	called := false
	newTestService(t, func(_ *configpkg.Config, d *ServiceDependencies) {
		d.Middlewares = []MiddlewareRegistration{{
			Name: "custom",
			Builder: func(s *Service) (message.HandlerMiddleware, error) {
				called = true
				return func(h message.HandlerFunc) message.HandlerFunc { return h }, nil
			},
		}}
	})
	assert.True(t, called)
}

func TestNewServiceReportsMiddlewareErrors(t *testing.T) {
	tests := []struct {
		name string
		reg  MiddlewareRegistration
		want string
	}{
		{"named", MiddlewareRegistration{Name: "bad"}, "register middleware bad"},
		{"anonymous", MiddlewareRegistration{}, "register middleware anonymous_middleware"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, sub := &transporttest.Publisher{}, &transporttest.Subscriber{}
			_, err := TryNewService(&configpkg.Config{PubSubSystem: "channel"}, newTestLogger(), context.Background(), ServiceDependencies{
				Policies:                  policy.NewRegistry(),
				TransportBuilder:          stubBuilder(pub, sub),
				Registerer:                newTestRegistry(),
				DisableDefaultMiddlewares: true,
				Middlewares:               []MiddlewareRegistration{tt.reg},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, sub.Closed)
			assert.True(t, pub.Closed)
		})
	}
}

func TestNewServiceToleratesMissingTransportSides(t *testing.T) {
	_, err := TryNewService(&configpkg.Config{PubSubSystem: "channel"}, newTestLogger(), context.Background(), ServiceDependencies{
		Policies:                  policy.NewRegistry(),
		TransportBuilder:          stubBuilder(nil, nil),
		Registerer:                newTestRegistry(),
		DisableDefaultMiddlewares: true,
		Middlewares:               []MiddlewareRegistration{{Name: "bad"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register middleware bad")
}

func TestServiceStartReturnsWhenContextCancelled(t *testing.T) {
	env := newTestService(t, nil)

	origRun := routerRun
	t.Cleanup(func() { routerRun = origRun })
	called := make(chan struct{}, 1)
	routerRun = func(_ *message.Router, runCtx context.Context) error {
		called <- struct{}{}
		<-runCtx.Done()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.svc.Start(ctx) }()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("routerRun override not invoked")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("service start did not return after context cancellation")
	}
}

func TestServiceStartStopsWhenRouterStops(t *testing.T) {
	env := newTestService(t, nil)

	origRun := routerRun
	t.Cleanup(func() { routerRun = origRun })
	routerRun = func(*message.Router, context.Context) error { return nil }

	done := make(chan error, 1)
	go func() { done <- env.svc.Start(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("service start did not return after the router stopped")
	}
}

func TestServiceStartPropagatesRouterError(t *testing.T) {
	env := newTestService(t, nil)

	origRun := routerRun
	t.Cleanup(func() { routerRun = origRun })
	boom := errors.New("router failed")
	routerRun = func(*message.Router, context.Context) error { return boom }

	assert.ErrorIs(t, env.svc.Start(context.Background()), boom)
}

func TestServiceStartChecksDefaultPoliciesAgain(t *testing.T) {
	env := newTestService(t, func(c *configpkg.Config, _ *ServiceDependencies) {
		c.DefaultPolicies = []string{"tracking-defaults"}
	})
	env.svc.Policies().Replace(nil)

	err := env.svc.Start(context.Background())
	assert.ErrorIs(t, err, policy.ErrPolicyNotFound)
}

func TestServiceServesRegisteredHTTPHandlers(t *testing.T) {
	port := freePort(t)
	env := newTestService(t, nil)
	env.svc.RegisterHTTPHandler(port, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))

	origRun := routerRun
	t.Cleanup(func() { routerRun = origRun })
	routerRun = func(_ *message.Router, ctx context.Context) error {
		<-ctx.Done()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.svc.Start(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/ping"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServiceCloseClosesTransport(t *testing.T) {
	env := newTestService(t, nil)

	require.NoError(t, env.svc.Close())
	assert.True(t, env.publisher.Closed)
	assert.True(t, env.subscriber.Closed)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
