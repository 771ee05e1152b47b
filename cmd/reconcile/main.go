// Command reconcile runs one reconciliation pass and exits. It exits non-zero
// when the run fails or another run already holds the lock.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fieldops/portal-sync/internal/app"
	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	runType := flag.String("type", string(constants.RunTypeIncremental), "run type: full, incremental or emergency")
	consistency := flag.Bool("consistency", false, "run the consistency checks after the sync")
	actor := flag.String("actor", "cli", "name recorded as the run trigger")
	flag.Parse()

	if !constants.RunType(*runType).Valid() {
		log.Fatalf("Invalid -type %q: want full, incremental or emergency", *runType)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logging.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	os.Exit(run(cfg, constants.RunType(*runType), *actor, *consistency))
}

func run(cfg *config.Config, runType constants.RunType, actor string, consistency bool) int {
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a private registry keeps the one-shot process off the default registerer
	a, err := app.New(ctx, cfg, metrics.NewMetricsRegistryWith(prometheus.NewRegistry()))
	if err != nil {
		logging.Error("Failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	result := a.Reconciliation.Run(ctx, runType, actor)
	out := map[string]interface{}{"reconciliation": result}

	if consistency {
		report, err := a.Reconciliation.CheckConsistency(ctx)
		if err != nil {
			logging.Error("Consistency check failed", "error", err)
			return 1
		}
		out["consistency"] = report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if result.Status != constants.RunStatusCompleted {
		return 1
	}
	return 0
}
