package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arloliu/go-slmp/config"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/manager"
	"github.com/arloliu/go-slmp/slmp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type pollFlags struct {
	interval string
	changes  bool
}

func newPollCmd(gf *globalFlags) *cobra.Command {
	flags := &pollFlags{}

	cmd := &cobra.Command{
		Use:   "poll [point...]",
		Short: "Poll targets cyclically until interrupted",
		Long: `Poll targets with the connection manager and print every value read.

With --config every connection of the file is polled with its targets,
or only the one named by --conn. Otherwise the points given as arguments
are polled on --host at --interval.`,
		Example: `  slmpctl poll --config plant.yaml
  slmpctl poll --host 192.168.3.39 --interval medium D100:u32 M5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, mopts, err := gf.pollJobs(args, flags.interval)
			if err != nil {
				return err
			}

			return runPoll(cmd.Context(), cmd.OutOrStdout(), jobs, flags.changes, mopts...)
		},
	}

	cmd.Flags().StringVar(&flags.interval, "interval", "fast", "Interval of argument points: fast, medium, slow, watch")
	cmd.Flags().BoolVar(&flags.changes, "changes", false, "Print a value only when it differs from the previous read")

	return cmd
}

type pollJob struct {
	name    string
	cfg     *slmp.ConnectionConfig
	targets []manager.Target
}

func (gf *globalFlags) pollJobs(args []string, intervalText string) ([]pollJob, []manager.Option, error) {
	if gf.config != "" && len(args) == 0 {
		file, err := gf.loadConfig()
		if err != nil {
			return nil, nil, err
		}

		var jobs []pollJob
		for i := range file.Connections {
			conn := &file.Connections[i]
			if gf.conn != "" && conn.Name != gf.conn {
				continue
			}
			job, err := newConfigJob(conn)
			if err != nil {
				return nil, nil, err
			}
			jobs = append(jobs, job)
		}
		if len(jobs) == 0 {
			return nil, nil, errors.New("no connection to poll")
		}

		return jobs, file.ManagerOptions(), nil
	}

	if len(args) == 0 {
		return nil, nil, errors.New("poll needs points or --config")
	}
	interval, err := manager.ParseInterval(intervalText)
	if err != nil {
		return nil, nil, err
	}
	points, err := parsePoints(args)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := gf.connectionConfig()
	if err != nil {
		return nil, nil, err
	}
	targets := make([]manager.Target, 0, len(points))
	for _, p := range points {
		targets = append(targets, manager.Target{Point: p, Interval: interval})
	}

	return []pollJob{{name: cfg.Properties().Address(), cfg: cfg, targets: targets}}, nil, nil
}

func newConfigJob(conn *config.Connection) (pollJob, error) {
	cfg, err := conn.Config(slmp.WithLogger(logger.With("conn", conn.Name)))
	if err != nil {
		return pollJob{}, err
	}
	targets, err := conn.ManagerTargets(cfg.Space())
	if err != nil {
		return pollJob{}, err
	}

	return pollJob{name: conn.Name, cfg: cfg, targets: targets}, nil
}

// printer serialises output of the cyclic tasks.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	changes bool
	last    map[string]string
}

func (p *printer) task(name string) manager.CyclicTask {
	return func(_ context.Context, c *manager.Cycle) error {
		if c.ReadErr != nil {
			p.line("%s\t%s\tcycle %d\tread error: %v", time.Now().Format(time.TimeOnly), name, c.Number, c.ReadErr)
			return nil
		}
		for i, v := range c.Values {
			key := name + "/" + c.Points[i].String()
			text := v.String()
			if p.unchanged(key, text) {
				continue
			}
			p.line("%s\t%s\t%s\t%s", time.Now().Format(time.TimeOnly), name, c.Points[i], text)
		}

		return nil
	}
}

func (p *printer) unchanged(key, text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.changes {
		return false
	}
	prev, ok := p.last[key]
	p.last[key] = text

	return ok && prev == text
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, format+"\n", args...)
}

func runPoll(ctx context.Context, out io.Writer, jobs []pollJob, changes bool, opts ...manager.Option) error {
	mgr := manager.New(append([]manager.Option{manager.WithContext(ctx)}, opts...)...)
	pr := &printer{out: out, changes: changes, last: make(map[string]string)}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			_, err := mgr.Connect(gctx, job.cfg, pr.task(job.name), manager.WithTargets(job.targets...))
			if err != nil {
				return fmt.Errorf("%s: %w", job.name, err)
			}

			return nil
		})
	}
	startErr := g.Wait()

	if startErr == nil {
		<-ctx.Done()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, st := range mgr.Connections() {
		if st.Err != nil {
			pr.line("%s\tfailed: %v", st.Handle, st.Err)
		}
	}
	if err := mgr.DisconnectAll(stopCtx); err != nil && startErr == nil {
		return err
	}

	return startErr
}
