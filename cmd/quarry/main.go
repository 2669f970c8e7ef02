// Quarry server: wires storage, retrieval, scheduling, and research into a
// running process — HTTP handlers for on-demand run-triggering and chat, a
// WebSocket endpoint for live progress, and a background worker pool that
// drains the connector run queue.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/hashing"
	"github.com/quarryhq/quarry/pkg/llmclient"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/retrieval"
	"github.com/quarryhq/quarry/pkg/scheduler"
	"github.com/quarryhq/quarry/pkg/store"
	"github.com/quarryhq/quarry/pkg/vectorstore"
)

// defaultChunkTargetTokens is the packer/chunker's default per-chunk token
// budget when a connector's own settings don't override it.
const defaultChunkTargetTokens = 512

// defaultContextWindow/defaultReservedOutput size research.Deps' packing
// budget for providers whose MaxContextTokens isn't otherwise consulted.
const (
	defaultContextWindow  = 128_000
	defaultReservedOutput = 4_000
	defaultTopK           = 20
	defaultMaxConcurrency = 4
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	httpPort := getEnv("HTTP_PORT", "8080")
	podID := getEnv("POD_ID", "quarry-local")

	slog.Info("starting quarry", "config_dir", *configDir, "pod_id", podID)

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(ctx, *cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("connected to postgres")

	vectorAPIKey := os.Getenv(cfg.Vector.APIKeyEnv)
	vectors, err := vectorstore.Open(ctx, *cfg.Vector, vectorAPIKey)
	if err != nil {
		slog.Error("failed to open vector store", "error", err)
		os.Exit(1)
	}
	defer vectors.Close()
	slog.Info("connected to qdrant")

	registry := connector.DefaultRegistry()

	// Every search space currently shares cfg.Defaults.LLMProvider for all
	// three of research.Deps' LLM slots — pkg/models.LLMConfig has no store
	// persistence yet for per-space provider overrides, so there is nothing
	// finer-grained to resolve against. See DESIGN.md.
	llmClient, err := buildLLMClient(cfg, cfg.Defaults.LLMProvider)
	if err != nil {
		slog.Error("failed to build default LLM client", "provider", cfg.Defaults.LLMProvider, "error", err)
		os.Exit(1)
	}
	defer llmClient.Close()

	tokenizer, err := hashing.NewTiktokenCounter("cl100k_base")
	if err != nil {
		slog.Error("failed to load tokenizer", "error", err)
		os.Exit(1)
	}

	publisher := events.NewEventPublisher(st.Pool())

	factory := &pipelineFactory{
		store:             st,
		vectors:           vectors,
		publisher:         publisher,
		registry:          registry,
		chunker:           hashing.NewStructuralChunker(),
		tokenizer:         tokenizer,
		summarizer:        hashing.NewLLMSummarizer(llmclient.AsCompleter{Client: llmClient}),
		embedder:          llmClient,
		chunkTargetTokens: defaultChunkTargetTokens,
	}

	sched := scheduler.NewScheduler(st)
	go sched.Run(ctx, time.Minute)

	pool := scheduler.NewWorkerPool(podID, st, cfg.Queue, &scheduler.PipelineExecutor{Factory: factory})

	catchup := events.NewPoolCatchupQuerier(st.Pool())
	manager := events.NewConnectionManager(catchup, 10*time.Second)
	listener := events.NewNotifyListener(cfg.Store.DSN, manager)
	manager.SetListener(listener)
	pool.WireCancellation(listener)

	if err := listener.Start(ctx); err != nil {
		slog.Error("failed to start notify listener", "error", err)
		os.Exit(1)
	}
	defer listener.Stop(ctx)

	if err := pool.Start(ctx); err != nil {
		slog.Error("failed to start worker pool", "error", err)
		os.Exit(1)
	}
	defer pool.Stop()
	slog.Info("scheduler worker pool started", "worker_count", cfg.Queue.WorkerCount)

	handlers := &handlers{
		store:     st,
		registry:  registry,
		scheduler: sched,
		manager:   manager,
		publisher: publisher,
		research: researchDeps{
			client:         llmClient,
			reranker:       retrieval.ScoreSortReranker{},
			packer:         hashing.NewPacker(tokenizer),
			contextWindow:  defaultContextWindow,
			reservedOutput: defaultReservedOutput,
			topK:           defaultTopK,
			maxConcurrency: defaultMaxConcurrency,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.handleHealth)
	mux.HandleFunc("POST /connectors/trigger", handlers.handleTrigger)
	mux.HandleFunc("POST /chat", handlers.handleChat)
	mux.HandleFunc("GET /ws", handlers.handleWebSocket)

	server := &http.Server{
		Addr:    ":" + httpPort,
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server did not shut down cleanly", "error", err)
	}
}

// buildLLMClient resolves providerName against the registry's configured
// providers and dials a client for it.
func buildLLMClient(cfg *config.Config, providerName string) (llmclient.Client, error) {
	providerCfg, err := cfg.LLMProviderRegistry.Get(providerName)
	if err != nil {
		return nil, err
	}
	apiKey := os.Getenv(providerCfg.APIKeyEnv)
	return llmclient.New(models.LLMConfig{
		Provider: string(providerCfg.Type),
		Model:    providerCfg.Model,
		BaseURL:  providerCfg.BaseURL,
	}, apiKey)
}
