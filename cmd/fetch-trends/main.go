package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/aggregator"
	"github.com/trendzee/live-trends/internal/archive"
	"github.com/trendzee/live-trends/internal/config"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/notifications"
	"github.com/trendzee/live-trends/internal/pipeline"
	"github.com/trendzee/live-trends/internal/reconcile"
	"github.com/trendzee/live-trends/internal/sources"
	"github.com/trendzee/live-trends/internal/storage"
)

// sourceList collects repeated -source flags
type sourceList []string

func (s *sourceList) String() string { return strings.Join(*s, ",") }

func (s *sourceList) Set(v string) error {
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*s = append(*s, name)
		}
	}
	return nil
}

func main() {
	var names sourceList
	flag.Var(&names, "source", "source to fetch (repeatable; default all)")
	clearFirst := flag.Bool("clear", false, "delete all non-manual trends before fetching")
	dryRun := flag.Bool("dry-run", false, "fetch and print candidates without touching the store")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if len(names) == 0 {
		names = cfg.FetchSources
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	registry := sources.NewDefaultRegistry(cfg)
	agg := aggregator.New(registry, cfg.SourceTimeout)

	if *dryRun {
		if len(names) == 0 {
			for _, src := range registry.Names() {
				names = append(names, string(src))
			}
		}
		printBatch(agg.Run(ctx, names))
		return
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open trend store: %v", err)
	}
	defer store.Close()

	runArchive, err := archive.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize run archive: %v", err)
	}

	svc := pipeline.NewService(store, agg, reconcile.NewEngine(store),
		pipeline.WithArchive(runArchive),
		pipeline.WithNotifier(notifications.NewService(cfg.TeamsWebhookURL)),
		pipeline.WithDefaultSources(cfg.FetchSources),
	)

	report, err := svc.Run(ctx, pipeline.Request{Sources: names, Clear: *clearFirst})
	if err != nil {
		log.Fatalf("Pipeline run failed: %v", err)
	}
	printReport(report)
}

func printBatch(batch *aggregator.Batch) {
	fmt.Println("📡 Fetch preview")
	fmt.Println(strings.Repeat("-", 40))

	for _, o := range batch.Outcomes {
		status := "✅"
		switch {
		case o.Fallback:
			status = "↪️ "
		case o.Error != "":
			status = "❌"
		}
		fmt.Printf("%s %-14s %3d candidates (%s)\n", status, o.Source, o.Candidates, o.Duration)
		if o.Error != "" {
			fmt.Printf("   %s\n", o.Error)
		}
		for i, c := range batch.Candidates[o.Source] {
			if i >= 3 {
				break
			}
			fmt.Printf("   📝 %.1f %-9s %s\n", c.Score, c.Velocity, c.Title)
		}
	}
}

func printReport(report *models.RunReport) {
	fmt.Printf("Run %s finished in %v\n", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Println(strings.Repeat("-", 40))
	if report.Cleared > 0 {
		fmt.Printf("Cleared %d non-manual trends\n", report.Cleared)
	}

	for _, o := range report.Outcomes {
		counts := report.PerSource[o.Source]
		line := fmt.Sprintf("%-14s created %3d  updated %3d", o.Source, counts.Created, counts.Updated)
		if counts.Skipped > 0 || counts.Failed > 0 {
			line += fmt.Sprintf("  skipped %d  failed %d", counts.Skipped, counts.Failed)
		}
		if o.Fallback {
			line += "  (feed fallback)"
		}
		if o.ErrorKind != "" && !o.Fallback {
			line += "  [" + o.ErrorKind + "]"
		}
		fmt.Println(line)
	}

	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Total: %d created, %d updated, %d trends stored\n", report.Created, report.Updated, report.StoreSize)
}
