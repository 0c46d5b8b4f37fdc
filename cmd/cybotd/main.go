// Cybotd is the CyBot control daemon.
//
// It keeps a TCP session to the robot, decodes its telemetry into a pose
// estimate and obstacle map, and serves both over HTTP and WebSocket.
// With demo mode enabled it runs an in-process robot simulator instead of
// dialing real hardware. Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/cybot-control/internal/app"
	"github.com/large-farva/cybot-control/internal/config"
	"github.com/large-farva/cybot-control/internal/logx"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", config.DefaultPath(), "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		robot      = pflag.String("robot", "", "Robot address host:port (overrides robot.host/port)")
		demo       = pflag.Bool("demo", false, "Run against the built-in robot simulator")
		logLevel   = pflag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cybotd: config load failed: %v\n", err)
		os.Exit(1)
	}
	if *robot != "" {
		if err := cfg.SetRobotAddr(*robot); err != nil {
			fmt.Fprintf(os.Stderr, "cybotd: --robot: %v\n", err)
			os.Exit(2)
		}
	}
	if *demo {
		cfg.Demo.Enabled = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := logx.Init(cfg.Logging.Level)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("cybotd failed", "err", err)
		os.Exit(1)
	}

	// Let in-flight log writes flush before exit.
	time.Sleep(50 * time.Millisecond)
}
