package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arloliu/go-slmp/config"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/slmp"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	host     string
	port     int
	series   string
	timeout  time.Duration
	logLevel string
	config   string
	conn     string
}

func (gf *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&gf.host, "host", "", "PLC host name or IP address")
	pf.IntVar(&gf.port, "port", config.DefaultPort, "PLC SLMP port")
	pf.StringVar(&gf.series, "series", "r", "CPU series: q (Q/L) or r (iQ-R)")
	pf.DurationVar(&gf.timeout, "timeout", time.Second, "Response timeout")
	pf.StringVar(&gf.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&gf.config, "config", "", "YAML configuration file")
	pf.StringVar(&gf.conn, "conn", "", "Connection name from --config")
}

func (gf *globalFlags) setupLogger() error {
	level, err := logger.ParseLevel(gf.logLevel)
	if err != nil {
		return err
	}
	logger.SetLogger(logger.NewSlogWithWriter(os.Stderr, level, false))

	return nil
}

func (gf *globalFlags) loadConfig() (*config.Config, error) {
	if gf.config == "" {
		return nil, errors.New("--config is required")
	}

	return config.Load(gf.config)
}

// connectionConfig resolves the endpoint from --conn or --host.
func (gf *globalFlags) connectionConfig() (*slmp.ConnectionConfig, error) {
	if gf.conn != "" {
		cfg, err := gf.loadConfig()
		if err != nil {
			return nil, err
		}
		conn, ok := cfg.Find(gf.conn)
		if !ok {
			return nil, fmt.Errorf("connection %q not found in %s", gf.conn, gf.config)
		}

		return conn.Config(slmp.WithLogger(logger.GetLogger()))
	}

	if gf.host == "" {
		return nil, errors.New("--host or --conn is required")
	}
	series, err := device.ParseSeries(gf.series)
	if err != nil {
		return nil, err
	}

	return slmp.NewConnectionConfig(gf.host, gf.port,
		slmp.WithSeries(series),
		slmp.WithResponseTimeout(gf.timeout),
		slmp.WithLogger(logger.GetLogger()),
	)
}

// withSession connects, runs fn and closes the session.
func (gf *globalFlags) withSession(ctx context.Context, fn func(ctx context.Context, sess *slmp.Session) error) error {
	cfg, err := gf.connectionConfig()
	if err != nil {
		return err
	}

	sess, err := slmp.NewSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Connect(ctx); err != nil {
		return err
	}

	return fn(ctx, sess)
}
