// Command memoryd is a thin entry point: load configuration, construct
// the memory service, and run one memorize call followed by one
// retrieve call so a fresh checkout has something to point at without
// standing up an HTTP/API layer.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/corewell/memoryd/internal/config"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memcore/ports"
	"github.com/corewell/memoryd/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	resourceURL := flag.String("resource", "", "resource to memorize on startup (file path or http(s) URL)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg, err = config.LoadDefault()
		}
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	svc, err := service.New(ctx, cfg)
	if err != nil {
		slog.Error("construct memory service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("close memory service", "error", err)
		}
	}()

	if *resourceURL == "" {
		slog.Info("memoryd ready; pass -resource to run a demo memorize+retrieve")
		return
	}

	sc := memcore.Scope{"user_id": "demo-user"}

	memResult, err := svc.Memorize(ctx, *resourceURL, memcore.ModalityDocument, "", sc)
	if err != nil {
		slog.Error("memorize", "error", err)
		os.Exit(1)
	}
	slog.Info("memorized resource",
		"resource_id", memResult.Resource.ID,
		"items", len(memResult.Items),
		"categories", len(memResult.Categories),
	)

	retResult, err := svc.Retrieve(ctx, []memcore.QueryMessage{
		{Role: "user", Content: memcore.QueryContent{Text: "What do we know so far?"}},
	}, ports.Where{"user_id": "demo-user"})
	if err != nil {
		slog.Error("retrieve", "error", err)
		os.Exit(1)
	}
	slog.Info("retrieved memory",
		"needs_retrieval", retResult.NeedsRetrieval,
		"items", len(retResult.Items),
		"categories", len(retResult.Categories),
		"resources", len(retResult.Resources),
	)
}
