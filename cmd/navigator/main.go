// Command navigator runs on a participant's device: it reports the local fix
// to the API and prints the direction, distance and altitude difference to
// the room host.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"backend-rendezvous/internal/aggregator"
	"backend-rendezvous/internal/apiclient"
	"backend-rendezvous/internal/compass"
	"backend-rendezvous/internal/config"
	"backend-rendezvous/internal/declination"
	"backend-rendezvous/internal/locate"
	"backend-rendezvous/internal/logging"
	"backend-rendezvous/internal/metrics"
	"backend-rendezvous/internal/sampler"

	"go.uber.org/zap"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig func() config.NavigatorConfig
	newLogger  func(string) (*zap.SugaredLogger, error)
	notify     func(chan<- os.Signal, ...os.Signal)
	run        func(context.Context, config.NavigatorConfig, *zap.SugaredLogger, <-chan os.Signal, io.Writer) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig: config.LoadNavigator,
		newLogger:  logging.New,
		notify:     signal.Notify,
		run:        Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	logger, err := deps.newLogger(cfg.LogLevel)
	if err != nil {
		logger = zap.NewNop().Sugar()
	}
	defer func() { _ = logger.Sync() }()

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, logger, signals, os.Stdout); err != nil {
		logger.Errorw("navigator exited with error", "error", err)
	}
}

var newDeclination = func(url string) compass.DeclinationLookup {
	return declination.NewClient(url)
}

var errNoLocator = errors.New("set NAVIGATOR_FIXED_POSITION or NAVIGATOR_GPS_PORT")

const renderInterval = time.Second

// Run wires location sampling, host tracking and the compass, and prints a
// status line whenever it changes until a signal arrives or ctx ends.
func Run(ctx context.Context, cfg config.NavigatorConfig, logger *zap.SugaredLogger, signals <-chan os.Signal, out io.Writer) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loc, closeLoc, err := openLocator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLoc()

	cmp, err := openCompass(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client := apiclient.New(cfg.APIURL, apiclient.Identity{Token: cfg.Token, UserID: cfg.UserID}, logger)
	smp := sampler.New(loc, client, logger,
		sampler.WithInterval(cfg.SampleInterval),
		sampler.WithTimeout(cfg.SampleTimeout),
	)
	agg := aggregator.New(client, logger, aggregator.WithInterval(cfg.PollInterval))
	tracker := metrics.NewTracker(client, logger)

	var wg sync.WaitGroup
	smp.Start(ctx)
	agg.Start(ctx)
	sub := agg.Subscribe()
	if cfg.RoomKey != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = client.Follow(ctx, cfg.RoomKey, agg.Trigger)
		}()
	}

	v := newView(out, metrics.NewProximity())
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-signals:
			break loop
		case <-ctx.Done():
			break loop
		case snap, ok := <-sub.C:
			if !ok {
				break loop
			}
			m, _ := tracker.Update(ctx, snap)
			if cmp != nil && snap.Self != nil && snap.Self.Latitude != nil && snap.Self.Longitude != nil {
				lat, lon := *snap.Self.Latitude, *snap.Self.Longitude
				wg.Add(1)
				go func() {
					defer wg.Done()
					cmp.UpdateLocation(ctx, lat, lon)
				}()
			}
			v.observe(m.Distance)
			v.render(m, deviceStatus(cmp, smp))
		case <-ticker.C:
			v.render(tracker.Current(), deviceStatus(cmp, smp))
		}
	}

	cancel()
	smp.Stop()
	agg.Stop()
	sub.Close()
	if cmp != nil {
		cmp.Close()
	}
	smp.Wait()
	tracker.Wait()
	wg.Wait()
	return nil
}

// openLocator prefers a fixed position over a serial GPS receiver.
func openLocator(ctx context.Context, cfg config.NavigatorConfig, logger *zap.SugaredLogger) (locate.Locator, func(), error) {
	if cfg.FixedPosition != "" {
		fixed, err := locate.ParseFixed(cfg.FixedPosition)
		if err != nil {
			return nil, nil, err
		}
		return fixed, func() {}, nil
	}
	if cfg.GPSPort == "" {
		return nil, nil, errNoLocator
	}

	port, err := locate.OpenSerial(cfg.GPSPort, cfg.GPSBaud)
	if err != nil {
		return nil, nil, err
	}
	gps := locate.NewNMEA(logger)
	go func() {
		if err := gps.Run(ctx, port); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("gps reader stopped", "port", cfg.GPSPort, "error", err)
		}
	}()
	return gps, func() { _ = port.Close() }, nil
}

// openCompass returns nil when no orientation input is configured. "-" reads
// samples from stdin.
func openCompass(ctx context.Context, cfg config.NavigatorConfig, logger *zap.SugaredLogger) (*compass.Compass, error) {
	if cfg.OrientationInput == "" {
		return nil, nil
	}
	var r io.Reader = os.Stdin
	if cfg.OrientationInput != "-" {
		f, err := os.Open(cfg.OrientationInput)
		if err != nil {
			return nil, err
		}
		context.AfterFunc(ctx, func() { _ = f.Close() })
		r = f
	}

	src := compass.NewReaderSource(logger)
	sources := compass.Sources{Relative: src.Relative()}
	if cfg.OrientationAbsolute {
		sources.Absolute = src.Absolute()
	}
	cmp := compass.New(sources, newDeclination(cfg.DeclinationURL), logger)
	if err := cmp.RequestPermission(ctx); err != nil {
		cmp.Close()
		return nil, err
	}
	go func() {
		if err := src.Run(ctx, r); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("orientation reader stopped", "error", err)
		}
	}()
	return cmp, nil
}

func deviceStatus(cmp *compass.Compass, smp *sampler.Sampler) status {
	st := status{
		heading:  heading(cmp),
		sampling: smp.Running(),
		err:      smp.Err(),
	}
	if cmp != nil {
		st.compass = true
		st.oriented = cmp.Subscribed()
		st.declination = cmp.Declination()
	}
	return st
}

func heading(cmp *compass.Compass) float64 {
	if cmp == nil {
		return 0
	}
	return float64(cmp.Rotation())
}
