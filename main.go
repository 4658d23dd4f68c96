package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"videoAnalyze/config"
	"videoAnalyze/storage"
)

var globalStore storage.VectorStore

func main() {
	if err := os.MkdirAll(dataRoot(), 0755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !cfg.HasValidAPI() {
		config.PrintConfigInstructions()
		log.Printf("Warning: API not configured, analysis requests will fail until it is")
	}

	globalStore = storage.NewVectorStore(cfg)
	backend := os.Getenv("STORE")
	if backend == "" {
		backend = "memory"
	}
	log.Printf("vector store initialized: %s", backend)

	if cfg.WatchDir != "" {
		go func() {
			if err := watchDir(context.Background(), cfg.WatchDir, cfg.MaxWorkers); err != nil && err != context.Canceled {
				log.Printf("watcher stopped: %v", err)
			}
		}()
	}

	http.HandleFunc("/analyze", analyzeHandler)
	http.HandleFunc("/query", queryHandler)
	http.HandleFunc("/search", searchHandler)
	http.HandleFunc("/guide", guideHandler)
	http.HandleFunc("/quiz", quizHandler)
	http.HandleFunc("/grade", gradeHandler)
	http.HandleFunc("/health", healthHandler)

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
