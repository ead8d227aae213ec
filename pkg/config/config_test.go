package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: test\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("default port: %d", c.Server.Port)
	}
	if c.Scheduler.DailySummary != "0 20 * * *" || c.Scheduler.Payments != "0 13 * * 1" {
		t.Fatalf("default cron specs: %+v", c.Scheduler)
	}
	if c.Engine.RequestTimeout != time.Minute {
		t.Fatalf("default request timeout: %v", c.Engine.RequestTimeout)
	}
	if c.Logging.Level != "info" {
		t.Fatalf("default log level: %q", c.Logging.Level)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: prod
server:
  port: 9090
engine:
  request_timeout: 5s
kafka:
  enabled: true
  brokers: ["k1:9092"]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9090 || c.Engine.RequestTimeout != 5*time.Second {
		t.Fatalf("file values not applied: %+v %+v", c.Server, c.Engine)
	}
	if c.Kafka.Topics.Notifications == "" {
		t.Fatalf("nested defaults lost")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"bad port":       "environment: x\nserver:\n  port: 70000\n",
		"kafka brokers":  "environment: x\nkafka:\n  enabled: true\n",
		"bad timezone":   "environment: x\nengine:\n  timezone: Mars/Olympus\n",
		"no environment": "environment: \"\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("TINKOFF_API_TOKEN", "t.secret")
	t.Setenv("HTTP_PORT", "7000")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(writeConfig(t, "environment: test\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Tinkoff.Token != "t.secret" || c.Server.Port != 7000 || c.Logging.Level != "debug" {
		t.Fatalf("env not applied: %+v", c)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:2" || !c.Kafka.Enabled {
		t.Fatalf("brokers: %v", c.Kafka.Brokers)
	}
}
