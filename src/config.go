package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Read configuration information from a file.
 *
 * Description:	The configuration is YAML.  Anything left out keeps its
 *		default, so an empty file, or none at all, gives a
 *		working setup: a UDP listener on port 10110 and a
 *		verification service on localhost.
 *
 *		Command line options are applied on top of this, by the
 *		front end, before Validate.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ListenerConfig struct {
	Type    string `yaml:"type"` // udp or serial
	Address string `yaml:"address"`
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
}

type VerifierConfig struct {
	Host    string        `yaml:"host"`
	Scheme  string        `yaml:"scheme"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Capacity     int    `yaml:"capacity"`
	Eviction     string `yaml:"eviction"`
	TrustedTypes []int  `yaml:"trusted_types"`
}

type FragmentConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type QueueConfig struct {
	Size     int    `yaml:"size"`
	Overload string `yaml:"overload"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type EventsConfig struct {
	Listen          string     `yaml:"listen"` // host:port for the TCP event stream, empty to disable.
	DNSSD           bool       `yaml:"dns_sd"`
	DNSSDName       string     `yaml:"dns_sd_name"`
	TimestampFormat string     `yaml:"timestamp_format"`
	Console         bool       `yaml:"console"`
	CSVLog          string     `yaml:"csv_log"`
	CSVDaily        bool       `yaml:"csv_daily"`
	MQTT            MQTTConfig `yaml:"mqtt"`
}

type Config struct {
	Listeners       []ListenerConfig `yaml:"listeners"`
	Verifier        VerifierConfig   `yaml:"verifier"`
	Forward         string           `yaml:"forward"` // host:port, empty to disable.
	Store           StoreConfig      `yaml:"store"`
	Correlation     string           `yaml:"correlation"`
	Fragments       FragmentConfig   `yaml:"fragments"`
	Queue           QueueConfig      `yaml:"queue"`
	DedupeWindow    time.Duration    `yaml:"dedupe_window"`
	ShutdownGrace   time.Duration    `yaml:"shutdown_grace"`
	ListenerRestart time.Duration    `yaml:"listener_restart"`
	Events          EventsConfig     `yaml:"events"`
	LogLevel        string           `yaml:"log_level"`
	LogJSON         bool             `yaml:"log_json"`
}

const DefaultUDPAddress = ":10110"

func DefaultConfig() *Config {
	return &Config{
		Listeners: []ListenerConfig{{Type: "udp", Address: DefaultUDPAddress}}, //nolint:exhaustruct
		Verifier: VerifierConfig{
			Host:    "localhost:8080",
			Scheme:  "http",
			Path:    DefaultVerifyPath,
			Timeout: 5 * time.Second,
		},
		Forward: "",
		Store: StoreConfig{
			Capacity:     20,
			Eviction:     string(EvictEpoch),
			TrustedTypes: []int{21},
		},
		Correlation:     string(CorrelateLatest),
		Fragments:       FragmentConfig{TTL: 60 * time.Second},
		Queue:           QueueConfig{Size: 1024, Overload: string(OverloadBlock)},
		DedupeWindow:    0,
		ShutdownGrace:   2 * time.Second,
		ListenerRestart: 5 * time.Second,
		Events: EventsConfig{ //nolint:exhaustruct
			TimestampFormat: DefaultTimestampFormat,
			Console:         true,
			MQTT: MQTTConfig{
				Broker:   "",
				Topic:    "aisverify",
				ClientID: "aisverify",
			},
		},
		LogLevel: "info",
		LogJSON:  false,
	}
}

// Default search order when no file is named.
var ConfigSearchLocations = []string{
	"aisverify.yaml",
	"/etc/aisverify/aisverify.yaml",
}

/*-------------------------------------------------------------------
 *
 * Name:        LoadConfig
 *
 * Purpose:    	Read the configuration file over the defaults.
 *
 * Inputs:	path	- File name.  Empty means try the search
 *			  locations and use defaults if none exist.
 *
 * Returns:	Configuration, not yet validated.
 *
 *--------------------------------------------------------------------*/

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		for _, loc := range ConfigSearchLocations {
			if _, err := os.Stat(loc); err == nil {
				path = loc

				break
			}
		}
	}

	if path == "" {
		return DefaultConfig(), nil
	}

	var f, openErr = os.Open(path) //nolint:gosec
	if openErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, openErr)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig reads YAML from r over the defaults.
func ParseConfig(r io.Reader) (*Config, error) {
	var data, readErr = io.ReadAll(r)
	if readErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, readErr)
	}

	var cfg = DefaultConfig()

	var dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return cfg, nil
}

func configError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, a...))
}

// Validate checks everything that can be checked without opening anything.
func (c *Config) Validate() error {
	if len(c.Listeners) == 0 {
		return configError("no listeners")
	}

	for i, l := range c.Listeners {
		switch l.Type {
		case "udp":
			if l.Address == "" {
				return configError("listener %d: udp needs an address", i)
			}
		case "serial":
			if l.Device == "" {
				return configError("listener %d: serial needs a device", i)
			}
		default:
			return configError("listener %d: unknown type %q", i, l.Type)
		}
	}

	if c.Verifier.Host == "" {
		return configError("verifier host is required")
	}

	if c.Verifier.Scheme != "http" && c.Verifier.Scheme != "https" {
		return configError("verifier scheme must be http or https, not %q", c.Verifier.Scheme)
	}

	if c.Verifier.Timeout <= 0 {
		return configError("verifier timeout must be positive")
	}

	if c.Store.Capacity < 1 {
		return configError("store capacity must be at least 1")
	}

	if _, err := ParseEvictionPolicy(c.Store.Eviction); err != nil {
		return err
	}

	if _, err := ParseCorrelationPolicy(c.Correlation); err != nil {
		return err
	}

	if c.Queue.Size < 1 {
		return configError("queue size must be at least 1")
	}

	if _, err := ParseOverloadPolicy(c.Queue.Overload); err != nil {
		return err
	}

	if c.Fragments.TTL < 0 || c.DedupeWindow < 0 || c.ShutdownGrace < 0 || c.ListenerRestart < 0 {
		return configError("durations must not be negative")
	}

	if c.Events.DNSSD && c.Events.Listen == "" {
		return configError("dns_sd needs events.listen")
	}

	if c.Events.MQTT.Broker != "" && c.Events.MQTT.Topic == "" {
		return configError("mqtt needs a topic")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}
