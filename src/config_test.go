package aisverify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	var cfg = DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []ListenerConfig{{Type: "udp", Address: ":10110"}}, cfg.Listeners) //nolint:exhaustruct
	assert.Equal(t, 20, cfg.Store.Capacity)
	assert.Equal(t, []int{21}, cfg.Store.TrustedTypes)
	assert.Equal(t, DefaultVerifyPath, cfg.Verifier.Path)
	assert.Equal(t, time.Minute, cfg.Fragments.TTL)
}

func TestParseConfig_Empty(t *testing.T) {
	var cfg, err = ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_Overrides(t *testing.T) {
	const text = `
listeners:
  - type: udp
    address: 127.0.0.1:5000
  - type: serial
    device: /dev/ttyUSB0
    baud: 38400
verifier:
  host: verify.example.org
  scheme: https
  timeout: 1500ms
forward: 127.0.0.1:10111
store:
  capacity: 50
  eviction: ring
  trusted_types: [21, 1]
correlation: mmsi
fragments:
  ttl: 30s
queue:
  size: 10
  overload: drop-oldest
dedupe_window: 2s
events:
  listen: :10112
  dns_sd: true
  csv_log: /tmp/ais.csv
  mqtt:
    broker: localhost:1883
log_level: debug
`
	var cfg, err = ParseConfig(strings.NewReader(text))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Listeners, 2)
	assert.Equal(t, "serial", cfg.Listeners[1].Type)
	assert.Equal(t, 38400, cfg.Listeners[1].Baud)

	assert.Equal(t, "verify.example.org", cfg.Verifier.Host)
	assert.Equal(t, 1500*time.Millisecond, cfg.Verifier.Timeout)
	assert.Equal(t, DefaultVerifyPath, cfg.Verifier.Path, "unmentioned keys keep their default")

	assert.Equal(t, 50, cfg.Store.Capacity)
	assert.Equal(t, string(EvictRing), cfg.Store.Eviction)
	assert.Equal(t, []int{21, 1}, cfg.Store.TrustedTypes)
	assert.Equal(t, string(CorrelateMMSI), cfg.Correlation)
	assert.Equal(t, 30*time.Second, cfg.Fragments.TTL)
	assert.Equal(t, string(OverloadDropOldest), cfg.Queue.Overload)
	assert.Equal(t, 2*time.Second, cfg.DedupeWindow)

	assert.True(t, cfg.Events.DNSSD)
	assert.True(t, cfg.Events.Console)
	assert.Equal(t, "localhost:1883", cfg.Events.MQTT.Broker)
	assert.Equal(t, "aisverify", cfg.Events.MQTT.Topic)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseConfig_UnknownKey(t *testing.T) {
	var _, err = ParseConfig(strings.NewReader("store:\n  capacty: 5\n"))
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "capacty")
}

func TestParseConfig_BadDuration(t *testing.T) {
	var _, err = ParseConfig(strings.NewReader("fragments:\n  ttl: soon\n"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadConfig_File(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "aisverify.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  capacity: 7\n"), 0o600))

	var cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Store.Capacity)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfig_Validate(t *testing.T) {
	var tests = map[string]func(*Config){
		"no listeners":     func(c *Config) { c.Listeners = nil },
		"udp no address":   func(c *Config) { c.Listeners[0].Address = "" },
		"serial no device": func(c *Config) { c.Listeners[0] = ListenerConfig{Type: "serial"} }, //nolint:exhaustruct
		"unknown listener": func(c *Config) { c.Listeners[0].Type = "carrier-pigeon" },
		"no verifier":      func(c *Config) { c.Verifier.Host = "" },
		"bad scheme":       func(c *Config) { c.Verifier.Scheme = "ftp" },
		"zero timeout":     func(c *Config) { c.Verifier.Timeout = 0 },
		"zero capacity":    func(c *Config) { c.Store.Capacity = 0 },
		"bad eviction":     func(c *Config) { c.Store.Eviction = "lru" },
		"bad correlation":  func(c *Config) { c.Correlation = "nearest" },
		"zero queue":       func(c *Config) { c.Queue.Size = 0 },
		"bad overload":     func(c *Config) { c.Queue.Overload = "explode" },
		"negative ttl":     func(c *Config) { c.Fragments.TTL = -time.Second },
		"dns-sd no server": func(c *Config) { c.Events.DNSSD = true },
		"mqtt no topic":    func(c *Config) { c.Events.MQTT = MQTTConfig{Broker: "localhost", Topic: "", ClientID: "x"} },
		"bad log level":    func(c *Config) { c.LogLevel = "chatty" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			var cfg = DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfig)
		})
	}
}
