package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"trenddraw/input"
	"trenddraw/internal/config"
	"trenddraw/internal/display"
	"trenddraw/internal/drag"
	"trenddraw/internal/server"
	"trenddraw/internal/signals"
	"trenddraw/internal/trigger"
	t "trenddraw/internal/types"
)

type flags struct {
	configPath string
	addr       string
	noHotkeys  bool
	debug      bool
	startX     int
	endX       int
	y          int
	step       float64
	duration   time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	run := func(cmd *cobra.Command, args []string) error {
		cfg, err := f.load(cmd)
		if err != nil {
			return err
		}
		logger := f.logger()
		pointer, err := input.NewPointer()
		if err != nil {
			return err
		}
		return runDraw(cmd.Context(), cfg, logger, pointer, edgeOptions(cfg, logger))
	}

	root := &cobra.Command{
		Use:           "trenddraw",
		Short:         "Draw a slow horizontal trendline by automating a mouse drag",
		Long:          `trenddraw presses the mouse on a chart and drags it horizontally over a fixed duration. Moving the mouse yourself pauses the drag; it resumes from where you left the pointer a few seconds later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	pf.BoolVar(&f.debug, "debug", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the drag with keyboard and remote triggers (default)",
		RunE:  run,
	}
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			b, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	for _, c := range []*cobra.Command{root, runCmd, configCmd} {
		fs := c.Flags()
		fs.StringVar(&f.addr, "addr", "", "listen address for the websocket remote control, empty disables it")
		fs.BoolVar(&f.noHotkeys, "no-hotkeys", false, "do not listen for keyboard chords")
		fs.IntVar(&f.startX, "start-x", 0, "x coordinate the drag starts at")
		fs.IntVar(&f.endX, "end-x", 0, "x coordinate the drag ends at")
		fs.IntVar(&f.y, "y", 0, "y coordinate of the line")
		fs.Float64Var(&f.step, "step", 0, "pixels moved per step")
		fs.DurationVar(&f.duration, "duration", 0, "total traversal time")
	}

	posCmd := &cobra.Command{
		Use:   "pos",
		Short: "Print the pointer position whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return trackPosition(cmd.Context(), cmd)
		},
	}

	root.AddCommand(runCmd, posCmd, configCmd)
	return root
}

func (f *flags) logger() golog.Logger {
	if f.debug {
		return golog.NewDevelopmentLogger("trenddraw")
	}
	return golog.NewLogger("trenddraw")
}

// load layers defaults, file, environment and the flags that were set.
func (f *flags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	fs := cmd.Flags()
	if fs.Changed("addr") {
		cfg.Remote.Addr = f.addr
	}
	if fs.Changed("no-hotkeys") {
		cfg.Chords.Enabled = !f.noHotkeys
	}
	if fs.Changed("start-x") {
		cfg.StartX = f.startX
	}
	if fs.Changed("end-x") {
		cfg.EndX = f.endX
	}
	if fs.Changed("y") {
		cfg.Y = f.y
	}
	if fs.Changed("step") {
		cfg.Step = f.step
	}
	if fs.Changed("duration") {
		cfg.Duration = config.D(f.duration)
	}
	return cfg, cfg.Validate()
}

// edgeOptions bounds resumed drags by the display, when it can be read.
func edgeOptions(cfg config.Config, logger golog.Logger) []drag.Option {
	bounds, err := display.Bounds(cfg.Display)
	if err != nil {
		logger.Warnw("cannot read display bounds, resumed drags are not clamped on the right", "error", err)
		return nil
	}
	start, end := t.Point{X: cfg.StartX, Y: cfg.Y}, t.Point{X: cfg.EndX, Y: cfg.Y}
	if err := display.Contains(bounds, start, end); err != nil {
		logger.Warnw("configured line leaves the display", "error", err)
	}
	return []drag.Option{drag.WithRightEdge(bounds.Max.X - 1)}
}

// runDraw drives pointer until a terminate signal or parent is done. extra
// sources are merged with the remote control and keyboard sources cfg enables.
func runDraw(
	parent context.Context,
	cfg config.Config,
	logger golog.Logger,
	pointer input.Pointer,
	opts []drag.Option,
	extra ...signals.Source,
) (err error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	type source struct {
		signals.Source
		required bool
	}
	var remote *server.Server
	var sources []source
	for _, src := range extra {
		sources = append(sources, source{src, true})
	}
	var schedOpts []trigger.Option
	if cfg.Remote.Addr != "" {
		remote = server.New(cfg.Remote.Addr, logger)
		sources = append(sources, source{remote, true})
		opts = append(opts, drag.WithObserver(remote))
		schedOpts = append(schedOpts, trigger.WithObserver(remote))
	}
	var hotkeys *signals.Hotkeys
	if cfg.Chords.Enabled {
		hotkeys, err = signals.NewHotkeys(cfg.Chords.Schedule, cfg.Chords.Terminate, logger)
		if err != nil {
			return errors.Wrap(err, "chords")
		}
		sources = append(sources, source{hotkeys, false})
	}

	ctrl := drag.NewController(cfg, pointer, logger, opts...)
	defer ctrl.Close()

	var chans []<-chan signals.Signal
	for _, src := range sources {
		ch, err := src.Signals(ctx)
		if err != nil {
			if src.required {
				return err
			}
			logger.Warnw("keyboard shortcuts unavailable", "error", err)
			continue
		}
		chans = append(chans, ch)
	}
	sigs := signals.Merge(ctx, chans...)

	var monitors sync.WaitGroup
	mctx, stopMonitor := context.WithCancel(ctx)
	monitors.Add(1)
	utils.ManagedGo(func() { ctrl.RunMonitor(mctx) }, monitors.Done)

	logger.Info("keyboard controls:")
	if hotkeys != nil {
		for sig, chord := range hotkeys.Describe() {
			logger.Infow("  chord", "keys", chord.String(), "action", sig)
		}
	}
	logger.Info("moving the mouse pauses the drag; it restarts from the new position after the cooldown")

	sched := trigger.NewScheduler(ctrl, cfg.Timing, logger, schedOpts...)
	sched.ScheduleStartup()
	runErr := sched.Run(ctx, sigs)
	stop()

	stopMonitor()
	monitors.Wait()
	ctrl.Close()
	if remote != nil {
		err = multierr.Combine(err, remote.Close())
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		err = multierr.Combine(err, runErr)
	}
	logger.Info("terminated")
	return err
}

// trackPosition prints the pointer position on every change until
// interrupted.
func trackPosition(parent context.Context, cmd *cobra.Command) error {
	pointer, err := input.NewPointer()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var last t.Point
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p, err := pointer.Position()
			if err != nil {
				continue
			}
			if first || p != last {
				fmt.Fprintf(cmd.OutOrStdout(), "X: %d | Y: %d\n", p.X, p.Y)
				last, first = p, false
			}
		}
	}
}
