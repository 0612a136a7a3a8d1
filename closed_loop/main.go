package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"drone-nav-core/utils"
)

func main() {
	var (
		scenPath = flag.String("scenario", "config/scenarios/office_right_wall.json", "Scenario JSON file")
		mapPath  = flag.String("map", "", "Floor plan (.png or .txt); overrides the scenario's map_path")
		iface    = flag.String("iface", "", "SocketCAN interface name; empty disables telemetry")
		canMap   = flag.String("canmap", "config/can/can_map.csv", "Path to can_map.csv")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		logFile  = flag.String("logfile", "drone_nav.log", "Log file path")
		seed     = flag.Int64("seed", 1, "Seed for random respawn positions")
	)
	flag.Parse()

	log, err := utils.NewFileLogger(*logFile, utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:    *iface,
		MapPath:      *mapPath,
		ScenarioPath: *scenPath,
		CANMapPath:   *canMap,
		Seed:         *seed,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
