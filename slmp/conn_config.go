package slmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/logger"
)

// DialFunc opens the transport of a session.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ConnectionConfig holds the parameters of one PLC endpoint.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host and port of the SLMP server of the PLC or Ethernet module.
	host string
	port int

	// series selects the device specification format and subcommands.
	// Defaults to iQ-R.
	series device.Series

	// route is the access route copied into every frame.
	// Defaults to the directly connected CPU: network 0, PC 0xFF, module I/O 0x03FF, station 0.
	route frame.Route

	// monitoringTimer is the CPU side wait in units of 250 ms, 0 waits forever.
	// Defaults to 0x0010 (4 seconds).
	monitoringTimer uint16

	// responseTimeout bounds every request/response exchange. It should be between 10 ms and 60 seconds.
	// Defaults to 1 second.
	responseTimeout time.Duration

	// connectTimeout bounds dialling. It should be between 10 ms and 60 seconds.
	// Defaults to 1 second.
	connectTimeout time.Duration

	// writeTimeout bounds writing one request frame. It should be between 10 ms and 60 seconds.
	// Defaults to 1 second.
	writeTimeout time.Duration

	// initialSerial is the first serial number used after each connect.
	// Defaults to 0.
	initialSerial uint16

	// table and limits describe the device address space.
	table  *device.Table
	limits device.Limits

	dialer DialFunc
	logger logger.Logger
}

const (
	minTimeout = 10 * time.Millisecond
	maxTimeout = 60 * time.Second
)

// NewConnectionConfig creates the configuration of the endpoint host:port and applies opts in order.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		series:          device.SeriesR,
		route:           frame.DefaultRoute(),
		monitoringTimer: 0x0010,
		responseTimeout: 1 * time.Second,
		connectTimeout:  1 * time.Second,
		writeTimeout:    1 * time.Second,
		table:           device.DefaultTable(),
		limits:          device.DefaultLimits,
		logger:          logger.GetLogger(),
	}

	if err := withRemoteHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Properties returns an immutable snapshot of the endpoint identity.
func (cfg *ConnectionConfig) Properties() Properties {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return Properties{
		Host:            cfg.host,
		Port:            cfg.port,
		Series:          cfg.series,
		Route:           cfg.route,
		MonitoringTimer: cfg.monitoringTimer,
		ResponseTimeout: cfg.responseTimeout,
	}
}

// Space returns the device address space of the endpoint.
func (cfg *ConnectionConfig) Space() device.Space {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return device.Space{Series: cfg.series, Table: cfg.table, Limits: cfg.limits}
}

// Logger returns the configured logger.
func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

func (cfg *ConnectionConfig) timeouts() (response, connect, write time.Duration) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.responseTimeout, cfg.connectTimeout, cfg.writeTimeout
}

// Properties is the comparable identity of an endpoint, usable as a map key.
type Properties struct {
	Host            string
	Port            int
	Series          device.Series
	Route           frame.Route
	MonitoringTimer uint16
	ResponseTimeout time.Duration
}

// Address returns host:port.
func (p Properties) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p Properties) String() string {
	return fmt.Sprintf("%s %s %s", p.Address(), p.Series, p.Route)
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return ErrConnConfigNil
	}
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// withRemoteHost accepts an IP address or a host name that resolves.
func withRemoteHost(host string) ConnOption {
	return newConnOptFunc("withRemoteHost", func(cfg *ConnectionConfig) error {
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.TrimSuffix(strings.TrimPrefix(host, "."), ".")
		if host == "" {
			return errors.New("invalid host")
		}
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithSeries selects the CPU series. The default is iQ-R.
func WithSeries(series device.Series) ConnOption {
	return newConnOptFunc("WithSeries", func(cfg *ConnectionConfig) error {
		if err := series.Validate(); err != nil {
			return err
		}
		cfg.series = series

		return nil
	})
}

// WithNetworkNo sets the destination network number.
func WithNetworkNo(no uint8) ConnOption {
	return newConnOptFunc("WithNetworkNo", func(cfg *ConnectionConfig) error {
		cfg.route.NetworkNo = no
		return nil
	})
}

// WithPCNo sets the destination station (PC) number.
func WithPCNo(no uint8) ConnOption {
	return newConnOptFunc("WithPCNo", func(cfg *ConnectionConfig) error {
		cfg.route.PCNo = no
		return nil
	})
}

// WithModuleIO sets the destination module I/O number.
func WithModuleIO(io uint16) ConnOption {
	return newConnOptFunc("WithModuleIO", func(cfg *ConnectionConfig) error {
		cfg.route.ModuleIO = io
		return nil
	})
}

// WithStationNo sets the destination multidrop station number.
func WithStationNo(no uint8) ConnOption {
	return newConnOptFunc("WithStationNo", func(cfg *ConnectionConfig) error {
		cfg.route.StationNo = no
		return nil
	})
}

// WithRoute sets the whole access route.
func WithRoute(route frame.Route) ConnOption {
	return newConnOptFunc("WithRoute", func(cfg *ConnectionConfig) error {
		cfg.route = route
		return nil
	})
}

// WithMonitoringTimer sets the CPU monitoring timer in units of 250 ms.
func WithMonitoringTimer(units uint16) ConnOption {
	return newConnOptFunc("WithMonitoringTimer", func(cfg *ConnectionConfig) error {
		cfg.monitoringTimer = units
		return nil
	})
}

func validTimeout(name string, val time.Duration) error {
	if val < minTimeout || val > maxTimeout {
		return fmt.Errorf("%s timeout out of range [%s, %s]", name, minTimeout, maxTimeout)
	}

	return nil
}

// WithResponseTimeout sets the bound of one request/response exchange.
func WithResponseTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithResponseTimeout", func(cfg *ConnectionConfig) error {
		if err := validTimeout("response", val); err != nil {
			return err
		}
		cfg.responseTimeout = val

		return nil
	})
}

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", func(cfg *ConnectionConfig) error {
		if err := validTimeout("connect", val); err != nil {
			return err
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the deadline for writing one request frame.
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", func(cfg *ConnectionConfig) error {
		if err := validTimeout("write", val); err != nil {
			return err
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithInitialSerial sets the serial number used by the first request after each connect.
func WithInitialSerial(serial uint16) ConnOption {
	return newConnOptFunc("WithInitialSerial", func(cfg *ConnectionConfig) error {
		cfg.initialSerial = serial
		return nil
	})
}

// WithDeviceTable replaces the device table, for CPUs with non-default device ranges.
func WithDeviceTable(table *device.Table) ConnOption {
	return newConnOptFunc("WithDeviceTable", func(cfg *ConnectionConfig) error {
		if table == nil {
			return errors.New("device table is nil")
		}
		cfg.table = table

		return nil
	})
}

// WithLimits replaces the per-frame point limits.
func WithLimits(limits device.Limits) ConnOption {
	return newConnOptFunc("WithLimits", func(cfg *ConnectionConfig) error {
		cfg.limits = limits
		return nil
	})
}

// WithDialer replaces the function used to open the transport.
func WithDialer(dial DialFunc) ConnOption {
	return newConnOptFunc("WithDialer", func(cfg *ConnectionConfig) error {
		if dial == nil {
			return errors.New("dialer is nil")
		}
		cfg.dialer = dial

		return nil
	})
}

// WithLogger sets the logger of the session.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
