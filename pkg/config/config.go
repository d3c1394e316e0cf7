// Package config provides common options to set up a node.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/mcuipc/pkg/ipc"
)

// Roles of a node.
const (
	RoleSender   = "sender"
	RoleReceiver = "receiver"
)

// Config provides all options of a node.
type Config struct {
	Capacity    int    `yaml:"capacity"`
	PayloadSize int    `yaml:"payload_size"`
	Checksum    string `yaml:"checksum"`
	FirstID     uint   `yaml:"first_id"`
	// InFlight limits the sender's unacknowledged window, 0 means
	// twice the capacity.
	InFlight int `yaml:"in_flight"`

	Role string `yaml:"role"`
	// Transport is the URL of the link, e.g.
	// tcp://host:port, serial:///dev/ttyUSB0, mqtt://host:1883/prefix, ws://host:port/path
	Transport string `yaml:"transport"`
	// Listen accepts the peer instead of dialing (tcp and ws).
	Listen bool `yaml:"listen"`
	// LinkID identifies the link, defaults to the machine id.
	LinkID       string        `yaml:"link_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MetricsAddr  string        `yaml:"metrics_addr"`
}

var defaultConfig = Config{
	Capacity:     ipc.DefaultCapacity,
	PayloadSize:  ipc.DefaultPayloadSize,
	Checksum:     ipc.DefaultChecksum.String(),
	Role:         RoleSender,
	Transport:    "tcp://localhost:7000",
	PollInterval: 10 * time.Millisecond,
}

var configFile string

func init() {
	if err := applyEnv(&defaultConfig, os.Getenv); err != nil {
		glog.Warningf("ignore env: %v", err)
	}
	configFile = os.Getenv("IPC_CONFIG")
}

func applyEnv(c *Config, getenv func(string) string) error {
	setInt := func(key string, out *int) error {
		if val := getenv(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return errors.Wrapf(err, "%s", key)
			}
			*out = n
		}
		return nil
	}
	if err := setInt("IPC_CAPACITY", &c.Capacity); err != nil {
		return err
	}
	if err := setInt("IPC_PAYLOAD_SIZE", &c.PayloadSize); err != nil {
		return err
	}
	if err := setInt("IPC_IN_FLIGHT", &c.InFlight); err != nil {
		return err
	}
	if val := getenv("IPC_FIRST_ID"); val != "" {
		n, err := strconv.ParseUint(val, 0, 16)
		if err != nil {
			return errors.Wrap(err, "IPC_FIRST_ID")
		}
		c.FirstID = uint(n)
	}
	if val := getenv("IPC_CHECKSUM"); val != "" {
		c.Checksum = val
	}
	if val := getenv("IPC_ROLE"); val != "" {
		c.Role = val
	}
	if val := getenv("IPC_TRANSPORT"); val != "" {
		c.Transport = val
	}
	if val := getenv("IPC_LISTEN"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.Wrap(err, "IPC_LISTEN")
		}
		c.Listen = b
	}
	if val := getenv("IPC_LINK_ID"); val != "" {
		c.LinkID = val
	}
	if val := getenv("IPC_POLL_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return errors.Wrap(err, "IPC_POLL_INTERVAL")
		}
		c.PollInterval = d
	}
	if val := getenv("IPC_METRICS_ADDR"); val != "" {
		c.MetricsAddr = val
	}
	return nil
}

// BindFlags binds the fields to flags of fs.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Capacity, "capacity", c.Capacity, "Number of slots in the ring.")
	fs.IntVar(&c.PayloadSize, "payload-size", c.PayloadSize, "Max payload bytes per slot.")
	fs.StringVar(&c.Checksum, "checksum", c.Checksum, "Checksum algorithm: xor8, sum16, crc32.")
	fs.UintVar(&c.FirstID, "first-id", c.FirstID, "Id of the first message sent.")
	fs.IntVar(&c.InFlight, "in-flight", c.InFlight, "Max unacknowledged messages tracked, 0 for 2*capacity.")
	fs.StringVar(&c.Role, "role", c.Role, "Node role: sender or receiver.")
	fs.StringVar(&c.Transport, "transport", c.Transport, "Link transport URL.")
	fs.BoolVar(&c.Listen, "listen", c.Listen, "Accept the peer instead of dialing.")
	fs.StringVar(&c.LinkID, "link-id", c.LinkID, "Link ID, default is the machine id.")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Polling interval of rings.")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Address to serve Prometheus metrics, empty to disable.")
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	defaultConfig.BindFlags(flag.CommandLine)
	flag.StringVar(&configFile, "config", configFile, "YAML config file.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load builds the config of a command after flags are parsed.
// Precedence from high to low: flags set in fs, env, config file, defaults.
func Load(fs *flag.FlagSet) (*Config, error) {
	if configFile == "" {
		return NewConfig(), nil
	}
	conf := &Config{
		Capacity:     ipc.DefaultCapacity,
		PayloadSize:  ipc.DefaultPayloadSize,
		Checksum:     ipc.DefaultChecksum.String(),
		Role:         RoleSender,
		PollInterval: 10 * time.Millisecond,
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	if err := applyEnv(conf, os.Getenv); err != nil {
		return nil, err
	}
	overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
	conf.BindFlags(overrides)
	var err error
	fs.Visit(func(f *flag.Flag) {
		if overrides.Lookup(f.Name) != nil && err == nil {
			err = overrides.Set(f.Name, f.Value.String())
		}
	})
	return conf, err
}

// LoadFile decodes a YAML file over the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// Validate checks the config once before anything is created.
func (c *Config) Validate() error {
	if _, err := c.IPC(); err != nil {
		return err
	}
	if c.Role != RoleSender && c.Role != RoleReceiver {
		return errors.Errorf("invalid role %q", c.Role)
	}
	if _, err := ParseTransport(c.Transport); err != nil {
		return err
	}
	return nil
}

// IPC converts the ring and protocol options.
func (c *Config) IPC() (ipc.Config, error) {
	checksum, err := ipc.ParseChecksum(c.Checksum)
	if err != nil {
		return ipc.Config{}, err
	}
	if c.FirstID > 0xffff {
		return ipc.Config{}, errors.Errorf("invalid first id %d", c.FirstID)
	}
	conf := ipc.Config{
		Capacity:      c.Capacity,
		PayloadSize:   c.PayloadSize,
		Checksum:      checksum,
		FirstID:       ipc.MessageID(c.FirstID),
		InFlightLimit: c.InFlight,
	}
	return conf, conf.Validate()
}

// ResolveLinkID returns LinkID or derives one from the machine id.
func (c *Config) ResolveLinkID() string {
	if c.LinkID != "" {
		return c.LinkID
	}
	id, err := machineid.ProtectedID("mcuipc")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		if id, err = os.Hostname(); err != nil {
			return "mcuipc"
		}
		return id
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
