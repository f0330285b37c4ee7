package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/config"
	"github.com/trendzee/live-trends/internal/query"
	"github.com/trendzee/live-trends/internal/storage"
	"gopkg.in/yaml.v3"
)

//go:embed trends.yaml
var sampleTrends []byte

func main() {
	file := flag.String("file", "", "YAML file of trends to seed (default: built-in demo set)")
	clearAll := flag.Bool("clear", false, "delete every stored trend before seeding")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	data := sampleTrends
	if *file != "" {
		if data, err = os.ReadFile(*file); err != nil {
			log.Fatalf("Failed to read %s: %v", *file, err)
		}
	}

	var trends []query.ManualTrend
	if err := yaml.Unmarshal(data, &trends); err != nil {
		log.Fatalf("Failed to parse seed trends: %v", err)
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open trend store: %v", err)
	}
	defer store.Close()

	svc := query.NewService(store)
	if *clearAll {
		n, err := clearTrends(ctx, svc)
		if err != nil {
			log.Fatalf("Failed to clear trends: %v", err)
		}
		fmt.Printf("Cleared %d existing trends.\n", n)
	}

	created, err := seed(ctx, svc, trends, os.Stdout)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	total, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count trends: %v", err)
	}
	fmt.Printf("\nSuccessfully seeded %d new trends. Total in store: %d\n", created, total)
}

// seed inserts every trend whose title is not stored yet
func seed(ctx context.Context, svc *query.Service, trends []query.ManualTrend, out io.Writer) (int, error) {
	created := 0
	for _, m := range trends {
		exists, err := titleExists(ctx, svc, m.Title)
		if err != nil {
			return created, err
		}
		if exists {
			fmt.Fprintf(out, "  - Already exists: %s\n", m.Title)
			continue
		}

		t, err := svc.CreateManual(ctx, m)
		if err != nil {
			return created, fmt.Errorf("failed to create %q: %w", m.Title, err)
		}
		created++
		fmt.Fprintf(out, "  ✓ Created: %s\n", t.Title)
	}
	return created, nil
}

func titleExists(ctx context.Context, svc *query.Service, title string) (bool, error) {
	matches, err := svc.Filter(ctx, query.FilterParams{Search: title})
	if err != nil {
		return false, err
	}
	for _, t := range matches {
		if t.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func clearTrends(ctx context.Context, svc *query.Service) (int, error) {
	all, err := svc.Filter(ctx, query.FilterParams{})
	if err != nil {
		return 0, err
	}
	for _, t := range all {
		if err := svc.Delete(ctx, t.ID); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}
