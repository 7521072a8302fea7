// Command emberdb-server wires the buffer pool to a real disk manager and
// WAL, then serves until signaled.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/emberdb/emberdb/internal/bufferpool"
	"github.com/emberdb/emberdb/internal/config"
	"github.com/emberdb/emberdb/internal/storage"
	"github.com/emberdb/emberdb/internal/wal"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults built in if omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := os.MkdirAll(cfg.Storage.Workdir, 0o755); err != nil {
		slog.Error("create data directory", "dir", cfg.Storage.Workdir, "err", err)
		os.Exit(1)
	}

	disk := storage.NewManager(storage.LocalFileSet{
		Dir:  filepath.Join(cfg.Storage.Workdir, "pages"),
		Base: "main",
	})

	logMgr, err := wal.Open(filepath.Join(cfg.Storage.Workdir, "wal"))
	if err != nil {
		slog.Error("open wal", "err", err)
		os.Exit(1)
	}
	defer func() { _ = logMgr.Close() }()

	if err := logMgr.Recover(disk); err != nil {
		slog.Error("recover wal", "err", err)
		os.Exit(1)
	}

	pool, err := bufferpool.NewManager(cfg.Bufferpool.PoolSize, cfg.Bufferpool.ReplacerK, disk, logMgr)
	if err != nil {
		slog.Error("construct buffer pool", "err", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutting down, flushing buffer pool")
		if err := pool.FlushAllPages(); err != nil {
			slog.Error("flush buffer pool", "err", err)
		}
		_ = logMgr.Close()
		os.Exit(0)
	}()

	slog.Info("emberdb started",
		"workdir", cfg.Storage.Workdir,
		"pool_size", cfg.Bufferpool.PoolSize,
		"replacer_k", cfg.Bufferpool.ReplacerK,
	)

	select {}
}
