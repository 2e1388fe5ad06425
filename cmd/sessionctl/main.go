package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/divyansshhh/jupyterlab/internal/domain/registry"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/config"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/logging"
	"github.com/divyansshhh/jupyterlab/internal/infrastructure/monitoring"
	"github.com/divyansshhh/jupyterlab/internal/kernel"
	"github.com/divyansshhh/jupyterlab/internal/rest"
	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

func main() {
	url := flag.String("url", "", "Jupyter server base URL (overrides JUPYTER_BASE_URL)")
	token := flag.String("token", "", "API token (overrides JUPYTER_TOKEN)")
	path := flag.String("path", "", "Session path for start")
	kernelName := flag.String("kernel", "python3", "Kernel name for start")
	id := flag.String("id", "", "Session id for shutdown")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *url != "" {
		cfg.Server.BaseURL = *url
	}
	if *token != "" {
		cfg.Server.Token = *token
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.New()
	connector := kernel.NewWSConnector(cfg.Server.Token, logger)

	clients := func(endpoint string) registry.API {
		return rest.New(rest.Config{
			BaseURL:        endpoint,
			Token:          cfg.Server.Token,
			Timeout:        cfg.Request.Timeout,
			RetryMax:       cfg.Request.RetryMax,
			RetryWaitMin:   cfg.Request.RetryWaitMin,
			RetryWaitMax:   cfg.Request.RetryWaitMax,
			RateLimitRPS:   cfg.Request.RateLimitRPS,
			DisableBreaker: !cfg.Request.BreakerEnable,
		}, logger, metrics)
	}

	manager := registry.NewManager(registry.Deps{
		Connect: connector,
		Log:     logger,
		Metrics: metrics,
		Clients: clients,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	endpoint := cfg.Server.BaseURL

	switch flag.Arg(0) {
	case "list":
		records, err := clients(endpoint).List(ctx)
		if err != nil {
			log.Fatalf("List failed: %v", err)
		}
		for _, rec := range records {
			kname := "-"
			if rec.Kernel != nil {
				kname = rec.Kernel.Name
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", rec.ID, rec.Path, rec.Type, kname)
		}

	case "start":
		conn, err := manager.StartNew(ctx, types.CreateOptions{
			Path:       *path,
			Type:       "notebook",
			KernelName: *kernelName,
		}, endpoint)
		if err != nil {
			log.Fatalf("Start failed: %v", err)
		}
		fmt.Println(conn.ID())

	case "shutdown":
		if *id == "" {
			log.Fatal("shutdown requires -id")
		}
		rec, err := manager.FindByID(ctx, *id, endpoint)
		if err != nil {
			log.Fatalf("Shutdown failed: %v", err)
		}
		conn, err := manager.ConnectTo(ctx, rec, endpoint)
		if err != nil {
			log.Fatalf("Shutdown failed: %v", err)
		}
		if err := conn.Shutdown(ctx); err != nil {
			log.Fatalf("Shutdown failed: %v", err)
		}

	case "shutdown-all":
		if err := manager.ShutdownAll(ctx, endpoint); err != nil {
			log.Fatalf("Shutdown-all failed: %v", err)
		}

	case "watch":
		if !cfg.Poll.Enabled {
			log.Fatal("polling is disabled")
		}
		if err := manager.Refresh(ctx, endpoint); err != nil {
			log.Fatalf("Initial refresh failed: %v", err)
		}
		manager.RunPolling(ctx, endpoint, cfg.Poll.Interval)

	default:
		fmt.Fprintln(os.Stderr, "usage: sessionctl [flags] list|start|shutdown|shutdown-all|watch")
		os.Exit(2)
	}
}
