// Command export prints the persisted transcript of the configured channel
// as plain text without connecting to the chat platform.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"chatviewer/internal/app"
	"chatviewer/internal/app/export"
	"chatviewer/internal/app/render"
	"chatviewer/internal/app/transcript"
	"chatviewer/internal/config"
	"chatviewer/internal/utils"

	"go.uber.org/zap"
)

func main() {
	includeDeleted := flag.Bool("deleted", true, "include deleted messages")
	output := flag.String("o", "", "write to file instead of stdout")
	flag.Parse()

	logger, err := utils.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer logger.Sync()

	utils.LoadEnv(logger)
	cfg := config.LoadConfig()
	if cfg.StoreBackend == config.BackendNone {
		logger.Fatal("STORE_BACKEND is none, nothing to export")
	}

	persister, _, err := app.NewPersister(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open transcript storage", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store := transcript.NewStore(persister)
	n, err := store.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load transcript", zap.Error(err))
	}

	records := store.All()
	if !*includeDeleted {
		kept := records[:0]
		for _, rec := range records {
			if !rec.Tombstoned {
				kept = append(kept, rec)
			}
		}
		records = kept
	}

	renderer, err := render.NewRenderer(render.NewColorAssigner(), nil, time.Local)
	if err != nil {
		logger.Fatal("Failed to create renderer", zap.Error(err))
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			logger.Fatal("Failed to create output file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	if err := export.WriteText(out, renderer, records); err != nil {
		logger.Fatal("Failed to write transcript", zap.Error(err))
	}
	logger.Info("Transcript exported", zap.Int("loaded", n), zap.Int("written", len(records)))
}
