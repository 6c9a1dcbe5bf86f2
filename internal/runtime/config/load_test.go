package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
pubsub_system: kafka
kafka_brokers: [localhost:9092]
kafka_consumer_group: routeflow
poison_queue: routeflow.poison
retry_max_retries: 3
retry_initial_interval: 250ms
policy_paths: [./policies]
default_policies: [tracking-defaults]
scheduled_jobs:
  - name: heartbeat
    interval: 30s
    topic: triggers
    metadata:
      tracking.ProcessName: Heartbeat
    payload:
      source: scheduler
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.PubSubSystem)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.RetryMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInitialInterval)
	assert.Equal(t, []string{"tracking-defaults"}, cfg.DefaultPolicies)
	require.Len(t, cfg.ScheduledJobs, 1)
	job := cfg.ScheduledJobs[0]
	assert.Equal(t, 30*time.Second, job.Interval)
	assert.Equal(t, "Heartbeat", job.Metadata["tracking.ProcessName"])
	assert.Equal(t, "scheduler", job.Payload["source"])
	assert.NoError(t, cfg.Validate())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("pubsub_sytem: kafka\n"))
	assert.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routeflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "routeflow.poison", cfg.PoisonQueue)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnvOverlaysVariables(t *testing.T) {
	t.Setenv("ROUTEFLOW_PUBSUB_SYSTEM", "nats")
	t.Setenv("ROUTEFLOW_NATS_URL", "nats://localhost:4222")
	t.Setenv("ROUTEFLOW_DEFAULT_POLICIES", "tracking-defaults, routing ,")
	t.Setenv("ROUTEFLOW_METRICS_ENABLED", "true")
	t.Setenv("ROUTEFLOW_RETRY_MAX_INTERVAL", "5s")

	cfg := &Config{PubSubSystem: "channel", PoisonQueue: "keep"}
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "nats", cfg.PubSubSystem)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, []string{"tracking-defaults", "routing"}, cfg.DefaultPolicies)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 5*time.Second, cfg.RetryMaxInterval)
	assert.Equal(t, "keep", cfg.PoisonQueue)
}

func TestApplyEnvJoinsParseErrors(t *testing.T) {
	t.Setenv("ROUTEFLOW_METRICS_PORT", "ninety")
	t.Setenv("ROUTEFLOW_WATCH_POLICIES", "maybe")

	cfg := &Config{}
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROUTEFLOW_METRICS_PORT")
	assert.Contains(t, err.Error(), "ROUTEFLOW_WATCH_POLICIES")
}

func TestApplyEnvLoadsDotenv(t *testing.T) {
	t.Setenv("ROUTEFLOW_PUBSUB_SYSTEM", "kafka")
	t.Cleanup(func() { _ = os.Unsetenv("ROUTEFLOW_IO_FILE") })

	path := filepath.Join(t.TempDir(), ".env")
	content := "ROUTEFLOW_PUBSUB_SYSTEM=io\nROUTEFLOW_IO_FILE=/tmp/routeflow.log\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := &Config{}
	require.NoError(t, cfg.ApplyEnv(path, filepath.Join(t.TempDir(), "absent.env")))

	assert.Equal(t, "kafka", cfg.PubSubSystem, "process env wins over dotenv")
	assert.Equal(t, "/tmp/routeflow.log", cfg.IOFile)
}
