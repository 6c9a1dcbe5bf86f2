package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/drblury/routeflow/internal/policy"
	"github.com/drblury/routeflow/internal/rules"
	configpkg "github.com/drblury/routeflow/internal/runtime/config"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
	"github.com/drblury/routeflow/transport"
	"github.com/drblury/routeflow/transport/transporttest"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

// trackingDefaults mirrors the embedded policy so tests do not depend on the
// embedded documents.
func trackingDefaults() *rules.Policy {
	return rules.MustPolicy("tracking-defaults",
		rules.NewRule("default-process-name").
			When(rules.Unset("tracking.ProcessName")).
			Then(rules.Set("tracking.ProcessName", "Check")).
			MustBuild(),
	)
}

// routingPolicy writes route.Destination from the order region.
func routingPolicy() *rules.Policy {
	return rules.MustPolicy("order-routing",
		rules.NewRule("eu").
			When(rules.Equals("order.Region", "eu")).
			Then(rules.Set(DefaultDestinationKey, "orders.eu")).
			MustBuild(),
		rules.NewRule("us").
			When(rules.Equals("order.Region", "us")).
			Then(rules.Set(DefaultDestinationKey, "orders.us")).
			MustBuild(),
	)
}

type testEnv struct {
	svc        *Service
	publisher  *transporttest.Publisher
	subscriber *transporttest.Subscriber
	registry   *prometheus.Registry
}

func stubBuilder(pub *transporttest.Publisher, sub *transporttest.Subscriber) transport.Builder {
	return func(context.Context, transport.Config, watermill.LoggerAdapter) (transport.Transport, error) {
		var tr transport.Transport
		if pub != nil {
			tr.Publisher = pub
		}
		if sub != nil {
			tr.Subscriber = sub
		}
		return tr, nil
	}
}

// newTestService builds a Service on fake transports. mutate may adjust the
// config and dependencies before construction.
func newTestService(t *testing.T, mutate func(*configpkg.Config, *ServiceDependencies)) testEnv {
	t.Helper()

	env := testEnv{
		publisher:  &transporttest.Publisher{},
		subscriber: &transporttest.Subscriber{},
		registry:   prometheus.NewRegistry(),
	}
	conf := &configpkg.Config{PubSubSystem: "channel"}
	deps := ServiceDependencies{
		TransportBuilder: stubBuilder(env.publisher, env.subscriber),
		Policies:         policy.NewRegistry(trackingDefaults(), routingPolicy()),
		Registerer:       env.registry,
	}
	if mutate != nil {
		mutate(conf, &deps)
	}

	svc, err := TryNewService(conf, newTestLogger(), context.Background(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	env.svc = svc
	return env
}

func newMessage(md map[string]string) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
	for k, v := range md {
		msg.Metadata.Set(k, v)
	}
	return msg
}

func passThrough(msg *message.Message) ([]*message.Message, error) {
	return nil, nil
}

type recordingServiceLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	errors []string
}

func (r *recordingServiceLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return r }

func (r *recordingServiceLogger) Debug(msg string, _ loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugs = append(r.debugs, msg)
}

func (r *recordingServiceLogger) Info(msg string, _ loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recordingServiceLogger) Error(msg string, _ error, _ loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordingServiceLogger) Trace(string, loggingpkg.LogFields) {}

func (r *recordingServiceLogger) debugCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.debugs)
}

func (r *recordingServiceLogger) errorMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
