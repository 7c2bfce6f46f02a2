package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zsolt-donca/scanout/internal/backend"
	"github.com/zsolt-donca/scanout/internal/config"
	"github.com/zsolt-donca/scanout/internal/drm"
	"github.com/zsolt-donca/scanout/internal/logger"
)

var (
	runDevice string
	runMode   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive all connected outputs",
	Long: `Open the DRM device, configure every connected output with the
requested mode and keep presenting frames until interrupted. Hotplug is
picked up by periodic connector rescans.`,
	RunE: runBackend,
}

func init() {
	runCmd.Flags().StringVarP(&runDevice, "device", "d", "", "DRM device path")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "Mode request (preferred, current or <w>x<h>[@<rate>])")

	viper.BindPFlag("card.path", runCmd.Flags().Lookup("device"))
	viper.BindPFlag("output.mode", runCmd.Flags().Lookup("mode"))
}

func runBackend(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if cfg.Logging.Level != "" {
		logger.SetLevel(cfg.Logging.Level)
	}

	clearR, clearG, clearB, err := parseColor(cfg.Output.ClearColor)
	if err != nil {
		return err
	}

	dev, err := drm.Open(cfg.DevicePath())
	if err != nil {
		return err
	}
	defer dev.Close()

	b, err := backend.New(dev)
	if err != nil {
		return fmt.Errorf("initialize backend on %s: %w", dev.Path(), err)
	}
	b.FlipTimeout = time.Duration(cfg.Output.FlipTimeoutMS) * time.Millisecond
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("backend shutdown", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.ScanConnectors(); err != nil {
		return err
	}

	logger.Info("driving outputs", "device", cfg.DevicePath(), "mode", cfg.Output.Mode)

	scanInterval := time.Duration(cfg.Output.ScanIntervalMS) * time.Millisecond
	nextScan := time.Now().Add(scanInterval)

	for ctx.Err() == nil {
		for {
			ev, ok := b.NextEvent()
			if !ok {
				break
			}
			handleEvent(b, ev, cfg.Output.Mode, clearR, clearG, clearB)
		}

		// The card fd only becomes readable when a flip completes;
		// the short timeout keeps the rescan and signal checks live.
		if err := b.WaitEvents(50 * time.Millisecond); err != nil {
			logger.Error("event pump", "err", err)
		}

		if time.Now().After(nextScan) {
			if err := b.ScanConnectors(); err != nil {
				logger.Error("connector scan", "err", err)
			}
			nextScan = time.Now().Add(scanInterval)
		}
	}

	logger.Info("shutting down")
	return nil
}

func handleEvent(b *backend.Backend, ev backend.Event, mode string, red, green, blue uint8) {
	switch ev.Kind {
	case backend.EventDisplayAdd:
		logger.Info("output plugged", "output", ev.Display.Name())
		if err := b.Modeset(ev.Display, mode); err != nil {
			logger.Error("modeset failed", "output", ev.Display.Name(), "err", err)
		}

	case backend.EventDisplayRem:
		logger.Info("output unplugged", "output", ev.Display.Name())

	case backend.EventRender:
		frame, err := b.BeginFrame(ev.Display)
		if err != nil {
			logger.Error("begin frame", "output", ev.Display.Name(), "err", err)
			return
		}
		frame.Fill(red, green, blue)
		if err := b.EndFrame(ev.Display); err != nil {
			logger.Error("end frame", "output", ev.Display.Name(), "err", err)
		}
	}
}

// parseColor parses "#rrggbb".
func parseColor(s string) (r, g, b uint8, err error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid clear color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid clear color %q: %w", s, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
