// Package config loads endpoint and polling definitions from YAML files.
//
// A file looks like:
//
//	log_level: info
//	base_tick: 100ms
//	connections:
//	  - name: press-1
//	    host: 192.168.3.39
//	    port: 5007
//	    series: r
//	    response_timeout: 2s
//	    targets:
//	      - device: D100
//	        type: u32
//	        interval: fast
//	      - device: M20
//	        interval: slow
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/manager"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/arloliu/go-slmp/slmp"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the port used when a connection leaves it out.
const DefaultPort = 5007

// Config is the root of a configuration file.
type Config struct {
	LogLevel    string        `yaml:"log_level,omitempty"`
	BaseTick    time.Duration `yaml:"base_tick,omitempty"`
	Connections []Connection  `yaml:"connections"`
}

// Connection describes one PLC endpoint. Unset route fields and timeouts keep the slmp defaults.
type Connection struct {
	Name            string        `yaml:"name"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port,omitempty"`
	Series          string        `yaml:"series,omitempty"`
	NetworkNo       *uint8        `yaml:"network,omitempty"`
	PCNo            *uint8        `yaml:"pc,omitempty"`
	ModuleIO        *uint16       `yaml:"module_io,omitempty"`
	StationNo       *uint8        `yaml:"station,omitempty"`
	MonitoringTimer *uint16       `yaml:"monitoring_timer,omitempty"`
	ResponseTimeout time.Duration `yaml:"response_timeout,omitempty"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	Targets         []Target      `yaml:"targets,omitempty"`
}

// Target is one polled point. Type defaults to bool on bit devices and u16 otherwise;
// Interval defaults to fast.
type Target struct {
	Device   string `yaml:"device"`
	Type     string `yaml:"type,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a configuration. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.Port == 0 {
			conn.Port = DefaultPort
		}
		if conn.Name == "" {
			conn.Name = fmt.Sprintf("%s:%d", conn.Host, conn.Port)
		}
	}
}

// Validate reports every problem in c, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.BaseTick < 0 {
		errs = append(errs, fmt.Errorf("base_tick: must not be negative, got %s", c.BaseTick))
	}

	names := make(map[string]int, len(c.Connections))
	endpoints := make(map[slmp.Properties]int, len(c.Connections))
	for i := range c.Connections {
		conn := &c.Connections[i]
		where := fmt.Sprintf("connections[%d] %q", i, conn.Name)

		if prev, ok := names[conn.Name]; ok {
			errs = append(errs, fmt.Errorf("%s: name already used by connections[%d]", where, prev))
		} else {
			names[conn.Name] = i
		}

		scfg, err := conn.Config()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
			continue
		}

		props := scfg.Properties()
		if prev, ok := endpoints[props]; ok {
			errs = append(errs, fmt.Errorf("%s: endpoint %s already used by connections[%d]", where, props, prev))
		} else {
			endpoints[props] = i
		}

		if _, err := conn.ManagerTargets(scfg.Space()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() logger.Level {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// ManagerOptions returns the manager options the file sets.
func (c *Config) ManagerOptions() []manager.Option {
	var opts []manager.Option
	if c.BaseTick > 0 {
		opts = append(opts, manager.WithBaseTick(c.BaseTick))
	}

	return opts
}

// Find returns the connection called name.
func (c *Config) Find(name string) (*Connection, bool) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], true
		}
	}

	return nil, false
}

// Options converts the connection settings to session options.
func (c *Connection) Options() ([]slmp.ConnOption, error) {
	var opts []slmp.ConnOption

	if c.Series != "" {
		series, err := device.ParseSeries(c.Series)
		if err != nil {
			return nil, err
		}
		opts = append(opts, slmp.WithSeries(series))
	}
	if c.NetworkNo != nil {
		opts = append(opts, slmp.WithNetworkNo(*c.NetworkNo))
	}
	if c.PCNo != nil {
		opts = append(opts, slmp.WithPCNo(*c.PCNo))
	}
	if c.ModuleIO != nil {
		opts = append(opts, slmp.WithModuleIO(*c.ModuleIO))
	}
	if c.StationNo != nil {
		opts = append(opts, slmp.WithStationNo(*c.StationNo))
	}
	if c.MonitoringTimer != nil {
		opts = append(opts, slmp.WithMonitoringTimer(*c.MonitoringTimer))
	}
	if c.ResponseTimeout != 0 {
		opts = append(opts, slmp.WithResponseTimeout(c.ResponseTimeout))
	}
	if c.ConnectTimeout != 0 {
		opts = append(opts, slmp.WithConnectTimeout(c.ConnectTimeout))
	}
	if c.WriteTimeout != 0 {
		opts = append(opts, slmp.WithWriteTimeout(c.WriteTimeout))
	}

	return opts, nil
}

// Config builds the session configuration. extra options are applied after the file's own.
func (c *Connection) Config(extra ...slmp.ConnOption) (*slmp.ConnectionConfig, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}

	return slmp.NewConnectionConfig(c.Host, c.Port, append(opts, extra...)...)
}

// PollTargets converts the polling targets using the default device table.
func (c *Connection) PollTargets() ([]manager.Target, error) {
	series := device.SeriesR
	if c.Series != "" {
		s, err := device.ParseSeries(c.Series)
		if err != nil {
			return nil, err
		}
		series = s
	}

	return c.ManagerTargets(device.NewSpace(series))
}

// ManagerTargets converts the polling targets and checks them against space.
func (c *Connection) ManagerTargets(space device.Space) ([]manager.Target, error) {
	targets := make([]manager.Target, 0, len(c.Targets))
	var errs []error
	for i, t := range c.Targets {
		target, err := t.convert(space)
		if err != nil {
			errs = append(errs, fmt.Errorf("targets[%d] %s: %w", i, t.Device, err))
			continue
		}
		targets = append(targets, target)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return targets, nil
}

func (t Target) convert(space device.Space) (manager.Target, error) {
	addr, err := space.Table.ParseAddress(t.Device)
	if err != nil {
		return manager.Target{}, err
	}

	typ := plcdata.U16
	if t.Type != "" {
		typ, err = plcdata.ParseDataType(t.Type)
		if err != nil {
			return manager.Target{}, err
		}
	} else if code, err := space.Code(addr); err == nil && code.IsBit() {
		typ = plcdata.Bool
	}

	interval, err := manager.ParseInterval(t.Interval)
	if err != nil {
		return manager.Target{}, err
	}

	pt := device.NewPoint(addr, typ)
	unit, count := device.UnitWord, typ.Words()
	if typ.IsBit() {
		unit, count = device.UnitBit, 1
	}
	if err := space.CheckRange(addr, count, unit); err != nil {
		return manager.Target{}, err
	}

	return manager.Target{Point: pt, Interval: interval}, nil
}
