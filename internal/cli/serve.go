package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/vigil/internal/classify"
	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/consolidate"
	"github.com/lazypower/vigil/internal/detect"
	"github.com/lazypower/vigil/internal/engine"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/memory"
	"github.com/lazypower/vigil/internal/server"
	"github.com/lazypower/vigil/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Check for ANTHROPIC_API_KEY env override
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = key
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// LLM client: the gate and detector degrade to heuristics without one.
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), classification degraded\n", err)
		llmClient = nil
	} else {
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	embedder := pickEmbedder(cfg, db)

	// Blacklist cache with its refresh loop.
	var src detect.Source = &detect.StaticSource{Apps: detect.DefaultBlacklist}
	if cfg.Detector.BlacklistURL != "" {
		src = detect.NewHTTPSource(cfg.Detector.BlacklistURL)
	}
	blacklist := detect.NewCache(src, time.Duration(cfg.Detector.BlacklistTTLSec)*time.Second)

	ctx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	blacklist.StartRefresh(ctx)
	defer blacklist.Stop()

	eng := engine.New(cfg, engine.Deps{
		DB:        db,
		LLM:       llmClient,
		Embedder:  embedder,
		Searcher:  classify.NewDuckDuckGo(),
		Blacklist: blacklist,
	})

	if cfg.Scheduler.Enabled {
		sched := consolidate.NewScheduler(eng.Consolidator(), cfg.Scheduler.Schedule)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "vigil serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// pickEmbedder prefers a live Ollama embedding model and falls back to an
// in-process TF-IDF vocabulary seeded from stored events.
func pickEmbedder(cfg config.Config, db *store.DB) memory.Embedder {
	ollamaURL := cfg.LLM.OllamaURL
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	embeddingModel := cfg.LLM.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	if memory.ProbeOllama(ollamaURL, embeddingModel) {
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", embeddingModel)
		return memory.NewOllamaEmbedder(ollamaURL, embeddingModel, 768)
	}

	docs, err := db.EventContents(1000)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tfidf corpus load failed: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback, %d docs)\n", len(docs))
	return memory.NewTFIDFEmbedder(docs, 512)
}
