// Command autoguide wires a mount, an optional AO, and a camera frame
// source into a running guide loop, the same way the teacher's
// cmd/radar/radar.go wires a serial device, a database and an HTTP
// server into one long-running process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/lodestar-guide/autoguide/internal/config"
	"github.com/lodestar-guide/autoguide/internal/controller"
	"github.com/lodestar-guide/autoguide/internal/driver/link"
	"github.com/lodestar-guide/autoguide/internal/driver/serialao"
	"github.com/lodestar-guide/autoguide/internal/driver/serialmount"
	"github.com/lodestar-guide/autoguide/internal/eventbus"
	"github.com/lodestar-guide/autoguide/internal/eventserver"
	"github.com/lodestar-guide/autoguide/internal/geom"
	"github.com/lodestar-guide/autoguide/internal/guider"
	"github.com/lodestar-guide/autoguide/internal/monitoring"
	"github.com/lodestar-guide/autoguide/internal/mount"
	"github.com/lodestar-guide/autoguide/internal/star"
	"github.com/lodestar-guide/autoguide/internal/storage"
	"github.com/lodestar-guide/autoguide/internal/testsupport"
)

var (
	configFile = flag.String("config", config.DefaultConfigPath, "Path to JSON tuning configuration file")
	dbPath = flag.String("db-path", "autoguide.db", "Path to sqlite state database (calibration, tuning profile)")
	mountName = flag.String("mount-name", "primary", "Name this mount/AO pair is persisted under")

	mountPort = flag.String("mount-port", "", "Serial port for the mount's pulse-guide interface (empty disables the mount link)")
	aoPort = flag.String("ao-port", "", "Serial port for the AO's step interface (empty disables the AO)")
	baudRate = flag.Int("baud", 9600, "Baud rate shared by the mount and AO serial links")

	simulate = flag.Bool("simulate", false, "Drive a simulated moving star instead of a real camera")
	starX = flag.Float64("star-x", 320, "Initial guide star X position in the camera frame")
	starY = flag.Float64("star-y", 240, "Initial guide star Y position in the camera frame")
	frameWidth = flag.Int("frame-width", 640, "Simulated camera frame width")
	frameHeight = flag.Int("frame-height", 480, "Simulated camera frame height")
	frameInterval = flag.Duration("frame-interval", time.Second, "Interval between guide frames")

	recalibrate = flag.Bool("recalibrate", false, "Run calibration before guiding instead of loading the persisted calibration")
	settleTolerancePx = flag.Float64("settle-tolerance-px", 1.5, "Guide settle tolerance in pixels")
	settleTime = flag.Duration("settle-time", 10*time.Second, "Time the offset must stay below the settle tolerance")
	settleTimeout = flag.Duration("settle-timeout", 2*time.Minute, "Maximum time to wait for guide settle")

	grpcListen = flag.String("grpc-listen", ":50061", "Listen address for the event-streaming gRPC service")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)

	cfg, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load tuning config from %s: %v", *configFile, err)
	}
	log.Printf("loaded tuning configuration from %s", *configFile)

	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open state database %s: %v", *dbPath, err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup

	pulseDriver, mountLink, err := openMountLink(ctx, &wg, *mountPort, *baudRate)
	if err != nil {
		log.Fatalf("failed to open mount link: %v", err)
	}
	if mountLink != nil {
		defer mountLink.Close()
	}

	decSafetyLimitRad := cfg.GetCalibrationDecSafetyLimitDeg() * math.Pi / 180
	scope := mount.NewScope(pulseDriver, 0, decSafetyLimitRad)
	if cal, ok, err := db.LoadCalibration(*mountName); err != nil {
		log.Printf("loading persisted calibration for %s: %v", *mountName, err)
	} else if ok && !*recalibrate {
		scope.SetCalibration(cal)
		log.Printf("loaded persisted calibration for %s (xrate=%.4f yrate=%.4f)", *mountName, cal.XRate, cal.YRate)
	}

	var ao mount.StepGuiderMount
	stepDriver, aoLink, err := openAOLink(ctx, &wg, *aoPort, *baudRate)
	if err != nil {
		log.Fatalf("failed to open AO link: %v", err)
	}
	if aoLink != nil {
		defer aoLink.Close()
	}
	if stepDriver != nil {
		sg := mount.NewStepGuider(stepDriver)
		if cal, ok, err := db.LoadCalibration(*mountName + ".ao"); err != nil {
			log.Printf("loading persisted AO calibration: %v", err)
		} else if ok && !*recalibrate {
			sg.SetCalibration(cal)
		}
		ao = sg
	}

	bus := eventbus.NewBus()
	defer bus.Close()

	g := guider.New(cfg, scope, ao, bus.Publish)
	if err := g.StartLooping(); err != nil {
		log.Fatalf("guider: %v", err)
	}

	frames := newFrameSource(*simulate, *starX, *starY, *frameWidth, *frameHeight)
	ctrl := controller.New(g, scope, ao, frames, *frameInterval, cfg, bus.Publish)

	if err := g.SelectStar(geom.New(*starX, *starY)); err != nil {
		log.Fatalf("guider: select star: %v", err)
	}

	runGRPCServer(ctx, &wg, bus, *grpcListen)
	runEventLogger(ctx, &wg, bus)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runGuideLoop(ctx, ctrl, db, scope, ao); err != nil && err != context.Canceled {
			log.Printf("guide loop stopped: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}

// openMountLink constructs the pulse-guide driver for the primary mount:
// a disabled no-op if mountPort is empty, otherwise a real serial link
// whose Monitor loop runs for the lifetime of ctx.
func openMountLink(ctx context.Context, wg *sync.WaitGroup, mountPort string, baud int) (mount.PulseDriver, interface{ Close() error }, error) {
	if mountPort == "" {
		log.Printf("mount serial port not configured; using a disabled link")
		return testsupport.NewFakePulseDriver(), nil, nil
	}

	l, err := link.OpenReal(mountPort, link.Options{BaudRate: baud})
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", mountPort, err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := l.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("mount link monitor: %v", err)
		}
	}()
	return serialmount.New(l, 5*time.Second), l, nil
}

// openAOLink mirrors openMountLink for the AO's step interface. It
// returns a nil driver (not a disabled one) when aoPort is empty, since
// an absent AO must leave the guider's ao parameter nil rather than
// configuring a fake one.
func openAOLink(ctx context.Context, wg *sync.WaitGroup, aoPort string, baud int) (mount.StepDriver, interface{ Close() error }, error) {
	if aoPort == "" {
		return nil, nil, nil
	}

	l, err := link.OpenReal(aoPort, link.Options{BaudRate: baud})
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", aoPort, err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := l.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("AO link monitor: %v", err)
		}
	}()
	d, err := serialao.New(l, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}
	return d, l, nil
}

// newFrameSource returns a real camera's blocking capture call once
// this module grows a concrete driver, and a moving-star simulation in
// the meantime: this command is the only caller that needs a frame
// source at all, and simulate=true is how it is exercised without
// hardware attached.
func newFrameSource(simulate bool, startX, startY float64, w, h int) controller.FrameSource {
	if !simulate {
		return func(ctx context.Context) (*star.Image, error) {
			return nil, fmt.Errorf("cmd/autoguide: no camera driver configured; pass -simulate for a synthetic star field")
		}
	}
	pos := geom.New(startX, startY)
	drift := geom.New(0.3, -0.15) // px/frame of unguided mount drift
	return func(ctx context.Context) (*star.Image, error) {
		pos = pos.Add(drift)
		return testsupport.SyntheticFrame(w, h, pos.X, pos.Y, 20000, 2.2, 500), nil
	}
}

// runGuideLoop calibrates (if requested or never persisted) then guides
// until ctx is canceled, persisting the resulting calibration so the
// next run can skip it.
func runGuideLoop(ctx context.Context, ctrl *controller.Controller, db *storage.DB, scope mount.Mount, ao mount.StepGuiderMount) error {
	if *recalibrate || !scope.IsCalibrated() {
		log.Printf("calibrating primary mount")
		if err := ctrl.Calibrate(ctx); err != nil {
			return fmt.Errorf("calibrate: %w", err)
		}
		if err := db.SaveCalibration(*mountName, scope.GetCalibration(), time.Now().Unix()); err != nil {
			log.Printf("saving calibration: %v", err)
		}
		if err := db.SaveCalibrationDetails(*mountName, ctrl.LastCalibrationDetails(), time.Now().Unix()); err != nil {
			log.Printf("saving calibration details: %v", err)
		}
	}

	settle := guider.SettleParams{TolerancePx: *settleTolerancePx, SettleTime: *settleTime, Timeout: *settleTimeout}
	return ctrl.Guide(ctx, settle, false)
}

// runGRPCServer registers eventserver on bus and serves it on addr
// until ctx is canceled.
func runGRPCServer(ctx context.Context, wg *sync.WaitGroup, bus *eventbus.Bus, addr string) {
	srv := grpc.NewServer()
	eventserver.RegisterEventServiceServer(srv, eventserver.NewServer(bus))

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", addr, err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("event gRPC server listening on %s", addr)
		if err := srv.Serve(lis); err != nil {
			log.Printf("event gRPC server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		srv.GracefulStop()
	}()
}

// runEventLogger subscribes to bus and writes one line per event through
// monitoring.Verbosef, so events reach the log only when
// monitoring.Verbose is set; it is the event sink an operator gets with
// no gRPC client attached.
func runEventLogger(ctx context.Context, wg *sync.WaitGroup, bus *eventbus.Bus) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, ch := bus.Subscribe()
		defer bus.Unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				monitoring.Verbosef("event: %#v", evt)
			}
		}
	}()
}
