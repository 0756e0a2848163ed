package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/coherence/mem/coherence"
	"github.com/sarchlab/coherence/mem/coherence/acceptance"
)

// Config describes one run. Flags override the config file, which
// overrides COHSIM_* environment variables, which override the defaults.
type Config struct {
	Protocol     string `yaml:"protocol"`
	Cores        int    `yaml:"cores"`
	Requests     int    `yaml:"requests"`
	Addresses    int    `yaml:"addresses"`
	Seed         int64  `yaml:"seed"`
	Sets         int    `yaml:"sets"`
	Ways         int    `yaml:"ways"`
	LinkLatency  uint64 `yaml:"link_latency"`
	HomeLatency  uint64 `yaml:"home_latency"`
	HomeCapacity int    `yaml:"home_capacity"`
	Prefetch     bool   `yaml:"prefetch"`
	Record       string `yaml:"record"`
	Monitor      bool   `yaml:"monitor"`
	MonitorPort  int    `yaml:"monitor_port"`
	OpenBrowser  bool   `yaml:"open_browser"`
	LogEvents    bool   `yaml:"log_events"`
	LogMsgs      bool   `yaml:"log_msgs"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Protocol:    "mesi",
		Cores:       4,
		Requests:    1000,
		Addresses:   16,
		Seed:        1,
		Sets:        4,
		Ways:        2,
		LinkLatency: 2,
		HomeLatency: 10,
	}
}

// Validate checks the values that cannot be caught by the builders.
func (c Config) Validate() error {
	if _, err := coherence.ParseVariant(c.Protocol); err != nil {
		return err
	}

	switch {
	case c.Cores <= 0:
		return fmt.Errorf("cores must be positive, got %d", c.Cores)
	case c.Requests < 0:
		return fmt.Errorf("requests cannot be negative, got %d", c.Requests)
	case c.Addresses <= 0:
		return fmt.Errorf("addresses must be positive, got %d", c.Addresses)
	case c.Sets <= 0 || c.Ways <= 0:
		return fmt.Errorf("invalid cache geometry %dx%d", c.Sets, c.Ways)
	}

	return nil
}

// SystemBuilder turns the configuration into an acceptance system builder.
func (c Config) SystemBuilder() (acceptance.Builder, error) {
	if err := c.Validate(); err != nil {
		return acceptance.Builder{}, err
	}

	variant, _ := coherence.ParseVariant(c.Protocol)

	return acceptance.MakeBuilder().
		WithVariant(variant).
		WithNumAgents(c.Cores).
		WithNumRequests(c.Requests).
		WithNumLines(c.Addresses).
		WithSeed(c.Seed).
		WithCacheGeometry(c.Sets, c.Ways).
		WithLinkLatency(c.LinkLatency).
		WithHomeLatency(c.HomeLatency).
		WithHomeCapacity(c.HomeCapacity).
		WithNextLinePrefetch(c.Prefetch), nil
}

// ApplyFile overrides the fields that a YAML file sets.
func (c *Config) ApplyFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

type envBinding struct {
	key   string
	apply func(c *Config, v string) error
}

func envInt(set func(c *Config, v int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}

		set(c, n)

		return nil
	}
}

func envUint(set func(c *Config, v uint64)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}

		set(c, n)

		return nil
	}
}

func envBool(set func(c *Config, v bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}

		set(c, b)

		return nil
	}
}

var envBindings = []envBinding{
	{"COHSIM_PROTOCOL", func(c *Config, v string) error {
		c.Protocol = v
		return nil
	}},
	{"COHSIM_CORES", envInt(func(c *Config, v int) { c.Cores = v })},
	{"COHSIM_REQUESTS", envInt(func(c *Config, v int) { c.Requests = v })},
	{"COHSIM_ADDRESSES", envInt(func(c *Config, v int) { c.Addresses = v })},
	{"COHSIM_SEED", envInt(func(c *Config, v int) { c.Seed = int64(v) })},
	{"COHSIM_SETS", envInt(func(c *Config, v int) { c.Sets = v })},
	{"COHSIM_WAYS", envInt(func(c *Config, v int) { c.Ways = v })},
	{"COHSIM_LINK_LATENCY",
		envUint(func(c *Config, v uint64) { c.LinkLatency = v })},
	{"COHSIM_HOME_LATENCY",
		envUint(func(c *Config, v uint64) { c.HomeLatency = v })},
	{"COHSIM_HOME_CAPACITY",
		envInt(func(c *Config, v int) { c.HomeCapacity = v })},
	{"COHSIM_PREFETCH", envBool(func(c *Config, v bool) { c.Prefetch = v })},
	{"COHSIM_RECORD", func(c *Config, v string) error {
		c.Record = v
		return nil
	}},
	{"COHSIM_MONITOR", envBool(func(c *Config, v bool) { c.Monitor = v })},
	{"COHSIM_MONITOR_PORT",
		envInt(func(c *Config, v int) { c.MonitorPort = v })},
}

// ApplyEnv overrides the fields whose COHSIM_* variable is set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}

		if err := b.apply(c, v); err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
	}

	return nil
}

func addConfigFlags(flags *pflag.FlagSet) {
	d := DefaultConfig()

	flags.String("config", "", "A YAML file that describes the run.")
	flags.String("protocol", d.Protocol, "The protocol, mesi or incoherent.")
	flags.Int("cores", d.Cores, "The number of cores, each with a cache.")
	flags.Int("requests", d.Requests, "The number of requests per core.")
	flags.Int("addresses", d.Addresses, "The number of lines per core.")
	flags.Int64("seed", d.Seed, "The seed of the random traffic.")
	flags.Int("sets", d.Sets, "The number of sets of each cache.")
	flags.Int("ways", d.Ways, "The number of ways of each cache.")
	flags.Uint64("link-latency", d.LinkLatency, "The wire latency in cycles.")
	flags.Uint64("home-latency", d.HomeLatency,
		"The access latency of the home node in cycles.")
	flags.Int("home-capacity", d.HomeCapacity,
		"The number of requests the home node queues, 0 for unlimited.")
	flags.Bool("prefetch", d.Prefetch, "Turn on the next-line prefetcher.")
	flags.String("record", d.Record,
		"Record accesses and transactions into PATH.sqlite3.")
	flags.Bool("monitor", d.Monitor, "Serve the monitoring web page.")
	flags.Int("monitor-port", d.MonitorPort,
		"The port of the monitoring server, 0 for a random port.")
	flags.Bool("open-browser", d.OpenBrowser,
		"Open the monitoring page in a browser.")
	flags.Bool("log-events", d.LogEvents, "Print every simulation event.")
	flags.Bool("log-msgs", d.LogMsgs, "Print every message sent on the link.")
}

// ApplyFlags overrides the fields whose flag is set on the command line.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "protocol":
			c.Protocol, _ = flags.GetString(f.Name)
		case "cores":
			c.Cores, _ = flags.GetInt(f.Name)
		case "requests":
			c.Requests, _ = flags.GetInt(f.Name)
		case "addresses":
			c.Addresses, _ = flags.GetInt(f.Name)
		case "seed":
			c.Seed, _ = flags.GetInt64(f.Name)
		case "sets":
			c.Sets, _ = flags.GetInt(f.Name)
		case "ways":
			c.Ways, _ = flags.GetInt(f.Name)
		case "link-latency":
			c.LinkLatency, _ = flags.GetUint64(f.Name)
		case "home-latency":
			c.HomeLatency, _ = flags.GetUint64(f.Name)
		case "home-capacity":
			c.HomeCapacity, _ = flags.GetInt(f.Name)
		case "prefetch":
			c.Prefetch, _ = flags.GetBool(f.Name)
		case "record":
			c.Record, _ = flags.GetString(f.Name)
		case "monitor":
			c.Monitor, _ = flags.GetBool(f.Name)
		case "monitor-port":
			c.MonitorPort, _ = flags.GetInt(f.Name)
		case "open-browser":
			c.OpenBrowser, _ = flags.GetBool(f.Name)
		case "log-events":
			c.LogEvents, _ = flags.GetBool(f.Name)
		case "log-msgs":
			c.LogMsgs, _ = flags.GetBool(f.Name)
		}
	})
}

// resolveConfig layers the defaults, the environment, the config file, and
// the flags.
func resolveConfig(flags *pflag.FlagSet) (Config, error) {
	c := DefaultConfig()

	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return c, err
	}

	path, _ := flags.GetString("config")
	if err := c.ApplyFile(path); err != nil {
		return c, err
	}

	c.ApplyFlags(flags)

	return c, c.Validate()
}
