// Package main is the sitebrain CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/content"
	"github.com/sitebrain/sitebrain/internal/embedding"
	"github.com/sitebrain/sitebrain/internal/indexer"
	"github.com/sitebrain/sitebrain/internal/keyword"
	"github.com/sitebrain/sitebrain/internal/queue"
	"github.com/sitebrain/sitebrain/internal/search"
	"github.com/sitebrain/sitebrain/internal/server"
	"github.com/sitebrain/sitebrain/internal/storage"
	"github.com/sitebrain/sitebrain/internal/watcher"
	"github.com/sitebrain/sitebrain/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/sitebrain/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "worker":
		runWorker()
	case "search":
		runSearch()
	case "index":
		runIndexPage()
	case "enqueue":
		runEnqueue()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("sitebrain version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`sitebrain - retrieval engine for CMS content

Usage:
  sitebrain server  [-config path] [-debug]        run the HTTP API, worker, and drop-directory watcher
  sitebrain worker  [-config path] [-once]         run the ingestion worker (or drain the queue once)
  sitebrain search  [-config path] [-lang id] <query...>
  sitebrain index   [-config path] <page.json>     index a page payload synchronously
  sitebrain enqueue [-config path] [-url] <path-or-url>
  sitebrain status  [-config path]
  sitebrain version
`)
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory wins, so running from the project dir picks up the
// project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// components holds the wired service graph.
type components struct {
	Store   *storage.Store
	Keyword *keyword.Index
	Engine  *search.Engine
	Indexer *indexer.Indexer
	Worker  *queue.Worker
}

func (c *components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initComponents wires the service graph. Commands that never embed (status,
// enqueue) pass needEmbedder=false so they run without a provider API key.
func initComponents(cfg *config.Config, logger *zap.Logger, needEmbedder bool) (*components, error) {
	store, err := storage.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	kw, err := keyword.NewIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	var embedder embedding.Embedder
	if needEmbedder {
		client, err := embedding.NewClient(
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.APIKeyEnv,
			cfg.Embedding.Timeout,
			cfg.Embedding.MaxRetries,
		)
		if err != nil {
			_ = kw.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		embedder = client
	}

	templates := config.ResolveTemplates(cfg.Indexing.ContextTemplates)
	slots := config.ResolveFieldSlots(cfg.Indexing.ContextFields)
	ix := indexer.New(store, embedder, kw, templates, slots,
		indexer.WithLogger(logger),
		indexer.WithChunking(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap))
	engine := search.NewEngine(store, embedder, kw, &cfg.Search, logger)
	worker := queue.NewWorker(store, ix, &cfg.Worker, logger)

	return &components{
		Store:   store,
		Keyword: kw,
		Engine:  engine,
		Indexer: ix,
		Worker:  worker,
	}, nil
}

func mustSetup(configPath *string, debug *bool, needEmbedder bool) (*config.Config, *zap.Logger, *components) {
	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || (debug != nil && *debug)
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	comps, err := initComponents(cfg, logger, needEmbedder)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	return cfg, logger, comps
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps := mustSetup(configPath, debug, true)
	defer logger.Sync()
	defer comps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker shares the process so the HTTP API and the queue drain from
	// the same storage without extra deployment pieces.
	go func() {
		if err := comps.Worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("worker stopped", zap.Error(err))
		}
	}()

	if len(cfg.Watch.Directories) > 0 {
		w := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := comps.Worker.EnqueueFile(ctx, path); err != nil {
					logger.Warn("failed to enqueue dropped file", zap.String("path", path), zap.Error(err))
				}
			},
			nil,
			logger,
		)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		w.SyncExisting()
	}

	srv := server.NewServer(comps.Engine, comps.Indexer, comps.Worker, comps.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && ctx.Err() == nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runWorker() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	once := fs.Bool("once", false, "drain the queue once and exit")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	_, logger, comps := mustSetup(configPath, debug, true)
	defer logger.Sync()
	defer comps.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		n, err := comps.Worker.Drain(ctx)
		if err != nil {
			logger.Fatal("drain failed", zap.Error(err))
		}
		fmt.Printf("Processed %d document(s)\n", n)
		return
	}
	if err := comps.Worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	langID := fs.Int64("lang", 0, "language ID to search in")
	asJSON := fs.Bool("json", false, "print the raw JSON response")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: sitebrain search [flags] <query...>")
		os.Exit(1)
	}

	_, logger, comps := mustSetup(configPath, nil, true)
	defer logger.Sync()
	defer comps.Close()

	result, err := comps.Engine.Search(context.Background(), query, *langID)
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("%d result(s) in %s\n\n", len(result.Chunks), result.TimeTaken.Round(time.Millisecond))
	for i, sc := range result.Chunks {
		fmt.Printf("%2d. [%.4f] %s (%s)\n", i+1, sc.Score, sc.Chunk.Title, sc.Chunk.SourceURL)
		fmt.Printf("    %s\n", utils.Truncate(sc.Chunk.Text, 160))
	}
	if result.Context != "" {
		fmt.Printf("\n--- context (%d chars) ---\n%s\n", len(result.Context), result.Context)
	}
}

func runIndexPage() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Println("Usage: sitebrain index [flags] <page.json>")
		os.Exit(1)
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Printf("Failed to read page payload: %v\n", err)
		os.Exit(1)
	}
	var page content.StaticPage
	if err := json.Unmarshal(raw, &page); err != nil {
		fmt.Printf("Invalid page payload: %v\n", err)
		os.Exit(1)
	}

	_, logger, comps := mustSetup(configPath, nil, true)
	defer logger.Sync()
	defer comps.Close()

	n, err := comps.Indexer.IndexPage(context.Background(), &page, 0)
	if err != nil {
		logger.Fatal("indexing failed", zap.Int64("page_id", page.ID()), zap.Error(err))
	}
	fmt.Printf("Indexed page %d: %d chunk(s)\n", page.ID(), n)
}

func runEnqueue() {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	asURL := fs.Bool("url", false, "treat the argument as a URL instead of a file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Println("Usage: sitebrain enqueue [flags] <path-or-url>")
		os.Exit(1)
	}

	_, logger, comps := mustSetup(configPath, nil, false)
	defer logger.Sync()
	defer comps.Close()

	ctx := context.Background()
	target := fs.Arg(0)
	var err error
	var id int64
	if *asURL {
		doc, enqErr := comps.Worker.EnqueueURL(ctx, target)
		if enqErr == nil {
			id = doc.ID
		}
		err = enqErr
	} else {
		abs, absErr := filepath.Abs(target)
		if absErr != nil {
			fmt.Printf("Invalid path: %v\n", absErr)
			os.Exit(1)
		}
		doc, enqErr := comps.Worker.EnqueueFile(ctx, abs)
		if enqErr == nil {
			id = doc.ID
		}
		err = enqErr
	}
	if err != nil {
		fmt.Printf("Enqueue failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Enqueued document %d\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps := mustSetup(configPath, nil, false)
	defer logger.Sync()
	defer comps.Close()

	ctx := context.Background()
	counts, err := comps.Store.CountDocuments(ctx)
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	chunks, err := comps.Store.CountChunks(ctx)
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	kwCount, _ := comps.Keyword.DocCount()

	fmt.Printf("Database:       %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("Keyword index:  %s (%d chunks)\n", cfg.Storage.BleveIndexPath, kwCount)
	fmt.Printf("Chunks stored:  %d\n", chunks)
	fmt.Println("Queue:")
	for _, status := range []string{"pending", "leased", "done", "failed"} {
		fmt.Printf("  %-8s %d\n", status, counts[status])
	}
}
