// Package main is the kotaeru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	iofs "io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotaeru/internal/answer"
	"github.com/hyperjump/kotaeru/internal/cli"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/keyword"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/server"
	"github.com/hyperjump/kotaeru/internal/splitter"
	"github.com/hyperjump/kotaeru/internal/vector"
	"github.com/hyperjump/kotaeru/internal/watcher"
	"github.com/hyperjump/kotaeru/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotaeru/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kotaeru server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
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

func main() {
	// API keys live in .env during development; a missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "documents":
		runDocuments()
	case "clear":
		runClear()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("kotaeru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (ingestion, retrieval, directory changes)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipeline := components.Pipeline
	extractor := components.Extractor
	index := components.Index
	watchOpts := []watcher.Option{
		// Skip files whose source name is already stored so a restart does not
		// re-ingest the whole watched tree.
		watcher.WithSyncSkip(func(path string) bool {
			return index.HasSource(filepath.Base(path))
		}),
	}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			text, extractErr := extractor.Extract(path)
			if extractErr != nil {
				logger.Warn("watch extract failed", zap.String("path", path), zap.Error(extractErr))
				return
			}
			if _, ingErr := pipeline.Ingest(context.Background(), filepath.Base(path), text); ingErr != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(ingErr))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Index,
		components.Keywords,
		components.Extractor,
		&cfg.Server,
		logger,
		watchSvc,
		resolvedConfigPath,
		cfg,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printQueryUsage prints query subcommand usage and examples.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotaeru query [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The answer is generated only from chunks retrieved from your ingested
documents; when nothing relevant is stored you get a fallback message.
  • Use --top-k to control how many chunks ground the answer.
  • Use --server "" to answer without a running server (opens the store directly).

Examples:
  kotaeru query what is the capital of France
  kotaeru query "what is the capital of France?"   # same as above
  kotaeru query --top-k 5 summarize the architecture notes
  kotaeru query --output json --top-k 3 your question
`)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting (e.g. "capital of France" vs capital of France).
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// queryArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "kotaeru query \"question\" -top-k 5"
// would otherwise leave -top-k unparsed.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	queryArgs := queryArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer directly without the server)")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(queryArgs)

	if fs.NArg() < 1 {
		printQueryUsage(fs)
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	request := &models.QueryRequest{Question: question, TopK: *topK}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids the Bleve/SQLite
		// lock conflict with a second process).
		result, err := queryViaHTTP(*serverURL, request)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct store access (when the server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	result, err := components.Engine.Answer(context.Background(), question, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, request *models.QueryRequest) (*models.QueryResult, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sourceName := fs.String("source", "", "override the stored source name (single file only; default: file name)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotaeru ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		ingested, skipped := 0, 0
		walkErr := filepath.WalkDir(path, func(p string, d iofs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !matchExtension(p, cfg.Watch.Extensions) {
				return nil
			}
			if _, ingErr := ingestFile(ctx, components, p, ""); ingErr != nil {
				if !errors.Is(ingErr, ingest.ErrDuplicateDocument) {
					fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", p, ingErr)
				}
				skipped++
				return nil
			}
			ingested++
			return nil
		})
		if walkErr != nil {
			fmt.Printf("Ingesting directory failed: %v\n", walkErr)
			os.Exit(1)
		}
		if skipped > 0 {
			fmt.Printf("Ingested %d file(s) from %s (%d skipped)\n", ingested, path, skipped)
		} else {
			fmt.Printf("Ingested %d file(s) from %s\n", ingested, path)
		}
		return
	}

	chunks, err := ingestFile(ctx, components, path, *sourceName)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	source := *sourceName
	if source == "" {
		source = filepath.Base(path)
	}
	fmt.Printf("Document ingested successfully: %s (%d chunks)\n", source, chunks)
}

// ingestFile extracts text from the file at path and runs it through the
// pipeline under sourceName (file name when empty). Returns the chunk count.
func ingestFile(ctx context.Context, c *Components, path, sourceName string) (int, error) {
	text, err := c.Extractor.Extract(path)
	if err != nil {
		return 0, err
	}
	if sourceName == "" {
		sourceName = filepath.Base(path)
	}
	ids, err := c.Pipeline.Ingest(ctx, sourceName, text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// matchExtension reports whether path's extension is in extensions
// (case-insensitive). An empty list accepts every extractable format.
func matchExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if len(extensions) == 0 {
		return extract.IsSupported(ext)
	}
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the store directly)")
	search := fs.String("q", "", "keyword search over document names and content")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	if *serverURL != "" {
		if *search != "" {
			matches, err := searchDocumentsViaHTTP(*serverURL, *search)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Documents search failed: %v\n", err)
				os.Exit(1)
			}
			if err := cli.WriteSourceMatches(os.Stdout, matches, format); err != nil {
				fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
		sources, err := listDocumentsViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Documents list failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSourceList(os.Stdout, sources, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if *search != "" {
		hits, err := components.Keywords.Search(context.Background(), *search, 100)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Documents search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSourceMatches(os.Stdout, keyword.GroupBySource(hits), format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := cli.WriteSourceList(os.Stdout, components.Index.Sources(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func listDocumentsViaHTTP(serverURL string) ([]models.SourceInfo, error) {
	resp, err := http.Get(serverURL + "/api/v1/documents")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Documents []models.SourceInfo `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Documents, nil
}

func searchDocumentsViaHTTP(serverURL, query string) ([]models.SourceMatch, error) {
	resp, err := http.Get(serverURL + "/api/v1/documents?q=" + url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Documents []models.SourceMatch `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Documents, nil
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = clear the store directly)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Clear failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Println("All documents cleared successfully.")
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Index.Clear(ctx); err != nil {
		fmt.Printf("Clear failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Keywords.Clear(ctx); err != nil {
		logger.Warn("keyword index clear failed", zap.Error(err))
	}
	fmt.Println("All documents cleared successfully.")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status models.Status
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		stats := components.Index.Stats()
		status = models.Status{
			Records: stats.TotalRecords,
			Sources: len(components.Index.Sources()),
			Config: &models.StatusConfig{
				CollectionName:      cfg.Collection.Name,
				EmbeddingProvider:   cfg.Embedding.Provider,
				EmbeddingDimensions: components.Index.Dimensions(),
				LLMProvider:         cfg.LLM.Provider,
				LLMModel:            cfg.LLM.Model,
				ChunkSize:           cfg.Chunking.Size,
				ChunkOverlap:        cfg.Chunking.Overlap,
				TopK:                cfg.Retrieval.TopK,
				DatabasePath:        cfg.Storage.DatabasePath,
				KeywordIndexPath:    cfg.Storage.KeywordIndexPath,
			},
		}
		diskBytes, err := utils.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath, cfg.Storage.DocumentsDir)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:            %d   # stored chunk records\n", status.Records)
		fmt.Printf("sources:            %d   # distinct ingested documents\n", status.Sources)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d   # database + keyword index + uploads on disk\n", *status.DiskUsageBytes)
		}
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("collection:         %s\n", status.Config.CollectionName)
			fmt.Printf("embedding_provider: %s\n", status.Config.EmbeddingProvider)
			if status.Config.EmbeddingDimensions > 0 {
				fmt.Printf("embedding_dims:     %d\n", status.Config.EmbeddingDimensions)
			}
			fmt.Printf("llm_provider:       %s\n", status.Config.LLMProvider)
			if status.Config.LLMModel != "" {
				fmt.Printf("llm_model:          %s\n", status.Config.LLMModel)
			}
			if status.Config.ChunkSize > 0 {
				fmt.Printf("chunk_size:         %d\n", status.Config.ChunkSize)
			}
			if status.Config.ChunkOverlap > 0 {
				fmt.Printf("chunk_overlap:      %d\n", status.Config.ChunkOverlap)
			}
			if status.Config.TopK > 0 {
				fmt.Printf("top_k:              %d\n", status.Config.TopK)
			}
			if status.Config.DatabasePath != "" {
				fmt.Printf("database_path:      %s\n", status.Config.DatabasePath)
			}
			if status.Config.KeywordIndexPath != "" {
				fmt.Printf("keyword_index_path: %s\n", status.Config.KeywordIndexPath)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*models.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s models.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kotaeru watch <add|remove|list> [path]")
		fmt.Println("  kotaeru watch add <path>     Add directory to watch")
		fmt.Println("  kotaeru watch remove <path>  Remove directory from watch")
		fmt.Println("  kotaeru watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kotaeru watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kotaeru watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Splitter  *splitter.RecursiveSplitter
	Embedder  embedding.Embedder
	Index     *vector.Collection
	Keywords  *keyword.Index
	Generator llm.Generator
	Extractor *extract.Extractor
	Pipeline  *ingest.Pipeline
	Engine    *answer.Engine
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	sp, err := splitter.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize splitter: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "local":
		local, localErr := embedding.NewLocalEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if localErr != nil {
			if logger != nil {
				logger.Warn("local embedder unavailable, falling back to hashing embedder",
					zap.String("model_path", cfg.Embedding.ModelPath),
					zap.Error(localErr))
			}
			embedder = embedding.NewHashingEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = local
		}
	case "openai":
		oa, oaErr := embedding.NewOpenAIEmbedder(
			config.OpenAIAPIKey(),
			cfg.Embedding.Model,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
		)
		if oaErr != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", oaErr)
		}
		embedder = oa
	case "mock":
		embedder = embedding.NewHashingEmbedder(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	index, err := vector.Open(cfg.Storage.DatabasePath, cfg.Collection.Name, embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to open vector collection: %w", err)
	}

	keywords, err := keyword.Open(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	var generator llm.Generator
	switch cfg.LLM.Provider {
	case "openai":
		gen, genErr := llm.NewOpenAIGenerator(config.OpenAIAPIKey(), cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.MaxTokens)
		if genErr != nil {
			return nil, fmt.Errorf("failed to initialize openai generator: %w", genErr)
		}
		generator = gen
	case "anthropic":
		gen, genErr := llm.NewAnthropicGenerator(config.AnthropicAPIKey(), cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.MaxTokens)
		if genErr != nil {
			return nil, fmt.Errorf("failed to initialize anthropic generator: %w", genErr)
		}
		generator = gen
	case "mock":
		generator = &llm.MockGenerator{}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	policy, err := ingest.ParsePolicy(cfg.Ingest.OnDuplicate)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}

	pipelineOpts := []ingest.Option{
		ingest.WithKeywordIndex(keywords),
		ingest.WithPolicy(policy),
	}
	engineOpts := []answer.Option{}
	if debug && logger != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithLogger(logger))
		engineOpts = append(engineOpts, answer.WithLogger(logger))
	}

	return &Components{
		Splitter:  sp,
		Embedder:  embedder,
		Index:     index,
		Keywords:  keywords,
		Generator: generator,
		Extractor: extract.NewExtractor(),
		Pipeline:  ingest.NewPipeline(sp, embedder, index, pipelineOpts...),
		Engine:    answer.NewEngine(embedder, index, generator, cfg.Retrieval.TopK, engineOpts...),
	}, nil
}

func printUsage() {
	fmt.Println(`kotaeru - Local retrieval-augmented question answering

Usage:
  kotaeru server [flags]              Start the HTTP server
  kotaeru query [flags] <question>    Answer a question from your documents
  kotaeru ingest [flags] <path>       Ingest a document file or directory
  kotaeru documents [flags]           List (or keyword-search) ingested documents
  kotaeru clear [flags]               Remove every ingested document
  kotaeru status [flags]              Show store/index status
  kotaeru watch <add|remove|list>     Manage watched directories
  kotaeru version                     Show version
  kotaeru help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotaeru/config.yaml)
  --debug            Enable debug logging (ingestion, retrieval, directory changes)

Query Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer without a running server.
  --top-k int        Number of chunks to retrieve (default: configured value, normally 3)
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path
  --source string    Override the stored source name (single file only)

Documents Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty for direct mode.
  --q string         Keyword search over document names and content
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  kotaeru server
  kotaeru ingest notes/meeting.pdf
  kotaeru ingest notes/
  kotaeru query what did we decide about the launch date
  kotaeru query --output json --top-k 5 "what is in the architecture notes?"
  kotaeru documents
  kotaeru documents --q budget
  kotaeru status --output json
  kotaeru watch add /path/to/docs
  kotaeru clear`)
}
