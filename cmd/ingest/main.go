package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/immcad/backend/internal/config"
	"github.com/immcad/backend/internal/ingest"
	"github.com/immcad/backend/internal/sources"
)

func main() {
	cadenceFlag := flag.String("cadence", "", "restrict the run to one cadence: daily, weekly, scheduled_incremental")
	sourcesFlag := flag.String("sources", "", "comma-separated source ids to ingest (overrides cadence selection)")
	timeoutFlag := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry, err := sources.LoadRegistry(cfg.SourceRegistryPath)
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}
	policies, err := sources.LoadPolicy(cfg.SourcePolicyPath)
	if err != nil {
		log.Fatalf("Failed to load source policy: %v", err)
	}
	fetchPolicy, err := ingest.LoadFetchPolicy(cfg.FetchPolicyPath)
	if err != nil {
		log.Fatalf("Failed to load fetch policy: %v", err)
	}
	store, err := ingest.NewCheckpointStore(cfg.CheckpointStatePath)
	if err != nil {
		log.Fatalf("Failed to open checkpoint state: %v", err)
	}

	var cadence sources.Cadence
	switch *cadenceFlag {
	case "":
	case string(sources.CadenceDaily), string(sources.CadenceWeekly), string(sources.CadenceScheduledIncremental):
		cadence = sources.Cadence(*cadenceFlag)
	default:
		log.Fatalf("Unknown cadence %q", *cadenceFlag)
	}

	var sourceIDs []string
	if *sourcesFlag != "" {
		for _, id := range strings.Split(*sourcesFlag, ",") {
			if id = strings.TrimSpace(id); id != "" {
				sourceIDs = append(sourceIDs, id)
			}
		}
	}

	engine := ingest.NewEngine(registry, policies, fetchPolicy, store, nil, cfg.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	report, err := engine.Run(ctx, cadence, sourceIDs)
	if err != nil {
		log.Fatalf("Ingestion run failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}

	if report.Failed > 0 {
		os.Exit(1)
	}
}
