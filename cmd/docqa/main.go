package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/logging"
	"docqa/internal/server"
	"docqa/internal/service"
	"docqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		serve   bool
		addr    string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API instead of the terminal UI")
	flag.StringVar(&addr, "addr", "", "Listen address for --serve (overrides server.addr)")
	flag.Parse()
	inputs := flag.Args()
	if !serve && len(inputs) == 0 {
		fmt.Println("Usage: docqa [--config=config.yaml] file1.pdf [file2.txt ...]")
		fmt.Println("       docqa --serve [--addr=:8080]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		out = f
	}
	logger := logging.New(out, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer comps.Close()

	svc := service.NewRAGService(comps.Deps, service.Options{
		TopK:             cfg.Retrieval.TopK,
		MaxContextChars:  cfg.Retrieval.MaxContextChars,
		SnippetChars:     cfg.Retrieval.SnippetChars,
		SummarySentences: cfg.Summarizer.MaxSentences,
	})
	logger.Info("embedder=%s store=%s generator=%s", comps.Embedder.Name(), cfg.VectorStore.Type, comps.Generator.Name())

	if serve {
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := server.New(svc, server.Config{
			Addr:            addr,
			MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
			ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
			ShutdownTimeout: time.Duration(cfg.Server.ShutdownGrace) * time.Second,
		}, logger)
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	summary, err := svc.ProcessFiles(ctx, fileRefs(inputs))
	if err != nil {
		if errors.Is(err, domain.ErrNoDocuments) {
			log.Fatalf("ingest failed: no supported documents with text among %d inputs", len(inputs))
		}
		log.Fatalf("ingest failed: %v", err)
	}
	header := fmt.Sprintf("%d files, %d chunks. %s", summary.Files, summary.Chunks, summary.Summary)

	// keep log lines from drawing over the UI
	if cfg.Log.File == "" {
		logger.SetLevel(logging.LevelNone)
	}
	m := tui.New(svc, header)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatal(err)
	}
}

// fileRefs expands glob patterns; a pattern that matches nothing is kept
// as a literal path so the loader can report it.
func fileRefs(inputs []string) []domain.FileRef {
	var refs []domain.FileRef
	for _, p := range inputs {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			refs = append(refs, domain.FileRef{Name: filepath.Base(m), Path: m})
		}
	}
	return refs
}
