package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/trendzee/live-trends/internal/archive"
	"github.com/trendzee/live-trends/internal/config"
	"github.com/trendzee/live-trends/internal/models"
)

func main() {
	day := flag.String("day", "", "only list runs from this day (YYYY-MM-DD)")
	show := flag.String("show", "", "print the archived report with this name")
	pruneBefore := flag.String("prune-before", "", "delete runs archived before this day (YYYY-MM-DD)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runArchive, err := archive.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize run archive: %v", err)
	}
	if runArchive == nil {
		log.Fatalf("No run archive configured (ARCHIVE_DRIVER=%s)", cfg.ArchiveDriver)
	}

	if *pruneBefore != "" {
		cutoff, err := time.Parse(dayLayout, *pruneBefore)
		if err != nil {
			log.Fatalf("Invalid -prune-before %q: %v", *pruneBefore, err)
		}
		deleted, err := prune(ctx, runArchive, cutoff)
		for _, name := range deleted {
			fmt.Printf("Deleted %s\n", name)
		}
		if err != nil {
			log.Fatalf("Pruning stopped: %v", err)
		}
		fmt.Printf("Pruned %d runs archived before %s\n", len(deleted), *pruneBefore)
		return
	}

	if *show != "" {
		report, err := load(ctx, runArchive, *show)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", *show, err)
		}
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}

	prefix := "runs/"
	if *day != "" {
		prefix += *day + "/"
	}

	names, err := runArchive.List(ctx, prefix)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No archived runs found")
		return
	}

	fmt.Printf("%-60s %8s %8s %8s\n", "RUN", "CREATED", "UPDATED", "STORED")
	fmt.Println(strings.Repeat("-", 88))
	for _, name := range names {
		report, err := load(ctx, runArchive, name)
		if err != nil {
			fmt.Printf("%-60s %s\n", name, err)
			continue
		}
		fmt.Printf("%-60s %8d %8d %8d\n", name, report.Created, report.Updated, report.StoreSize)
	}
}

const dayLayout = "2006-01-02"

// prune deletes every run archived under a day directory before cutoff and
// returns the deleted names
func prune(ctx context.Context, a archive.Archive, cutoff time.Time) ([]string, error) {
	names, err := a.List(ctx, "runs/")
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, name := range names {
		parts := strings.SplitN(strings.TrimPrefix(name, "runs/"), "/", 2)
		if len(parts) != 2 {
			continue
		}
		day, err := time.Parse(dayLayout, parts[0])
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := a.Delete(ctx, name); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", name, err)
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

func load(ctx context.Context, a archive.Archive, name string) (*models.RunReport, error) {
	data, err := a.Retrieve(ctx, name)
	if err != nil {
		return nil, err
	}
	var report models.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid run report: %w", err)
	}
	return &report, nil
}
