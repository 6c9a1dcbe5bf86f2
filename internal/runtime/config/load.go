package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ROUTEFLOW_"

// LoadFile reads a YAML configuration file. Unknown keys are rejected so typos
// surface at startup instead of silently falling back to defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration document. An empty document yields the
// zero Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads the given dotenv files, then overlays every ROUTEFLOW_*
// variable present in the environment onto c. Variables already set in the
// process environment take precedence over dotenv values. Missing dotenv files
// are ignored.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	var errs []error
	for _, binding := range envBindings(c) {
		raw, ok := os.LookupEnv(EnvPrefix + binding.name)
		if !ok {
			continue
		}
		if err := binding.set(strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, binding.name, err))
		}
	}
	return errors.Join(errs...)
}

type envBinding struct {
	name string
	set  func(string) error
}

func envBindings(c *Config) []envBinding {
	return []envBinding{
		{"PUBSUB_SYSTEM", setString(&c.PubSubSystem)},
		{"KAFKA_BROKERS", setList(&c.KafkaBrokers)},
		{"KAFKA_CLIENT_ID", setString(&c.KafkaClientID)},
		{"KAFKA_CONSUMER_GROUP", setString(&c.KafkaConsumerGroup)},
		{"RABBITMQ_URL", setString(&c.RabbitMQURL)},
		{"NATS_URL", setString(&c.NATSURL)},
		{"NATS_CLIENT_NAME", setString(&c.NATSClientName)},
		{"HTTP_SERVER_ADDRESS", setString(&c.HTTPServerAddress)},
		{"HTTP_PUBLISHER_URL", setString(&c.HTTPPublisherURL)},
		{"IO_FILE", setString(&c.IOFile)},
		{"POISON_QUEUE", setString(&c.PoisonQueue)},
		{"AWS_REGION", setString(&c.AWSRegion)},
		{"AWS_ACCOUNT_ID", setString(&c.AWSAccountID)},
		{"AWS_ACCESS_KEY_ID", setString(&c.AWSAccessKeyID)},
		{"AWS_SECRET_ACCESS_KEY", setString(&c.AWSSecretAccessKey)},
		{"AWS_ENDPOINT", setString(&c.AWSEndpoint)},
		{"RETRY_MAX_RETRIES", setInt(&c.RetryMaxRetries)},
		{"RETRY_INITIAL_INTERVAL", setDuration(&c.RetryInitialInterval)},
		{"RETRY_MAX_INTERVAL", setDuration(&c.RetryMaxInterval)},
		{"METRICS_ENABLED", setBool(&c.MetricsEnabled)},
		{"METRICS_PORT", setInt(&c.MetricsPort)},
		{"POLICY_PATHS", setList(&c.PolicyPaths)},
		{"DISABLE_EMBEDDED_POLICIES", setBool(&c.DisableEmbeddedPolicies)},
		{"WATCH_POLICIES", setBool(&c.WatchPolicies)},
		{"DEFAULT_POLICIES", setList(&c.DefaultPolicies)},
	}
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setList(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
