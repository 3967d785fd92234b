// Command webhook-gateway is the process entrypoint: it loads configuration,
// wires every component of the ingestion-classification-threading pipeline,
// runs the startup healthcheck against the store, and serves the two HTTP
// routes of §6 until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/junksamiad/argan-call-log/internal/ack"
	"github.com/junksamiad/argan-call-log/internal/classify"
	"github.com/junksamiad/argan-call-log/internal/config"
	"github.com/junksamiad/argan-call-log/internal/conversation"
	"github.com/junksamiad/argan-call-log/internal/dedup"
	"github.com/junksamiad/argan-call-log/internal/extract"
	"github.com/junksamiad/argan-call-log/internal/llm"
	"github.com/junksamiad/argan-call-log/internal/loopguard"
	"github.com/junksamiad/argan-call-log/internal/orchestrator"
	"github.com/junksamiad/argan-call-log/internal/store"
	"github.com/junksamiad/argan-call-log/internal/ticketid"
	"github.com/junksamiad/argan-call-log/pkg/log"
)

// Exit codes per §6.
const (
	exitOK              = 0
	exitConfigInvalid   = 1
	exitBindFailure     = 2
	exitEndpointUnreach = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitConfigInvalid
	}

	logger := log.New(os.Stdout)
	if cfg.LogLoc != "" {
		f, err := os.OpenFile(cfg.LogLoc, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file: %v\n", err)
			return exitConfigInvalid
		}
		defer f.Close()
		logger.AddWriter(f)
	}

	llmClient := llm.New(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMDeadline)
	storeAdapter := store.New(cfg.StoreBaseURL, cfg.StoreAPIKey, cfg.StoreBaseID, cfg.StoreTableName, cfg.StoreDeadline, cfg.StoreWriteQPS)
	ackSender := ack.New(cfg.MailEndpoint, cfg.MailAPIKey, cfg.OutboundFromAddr, cfg.OutboundCCAddr, cfg.MailDeadline)

	health := probeStartupHealth(storeAdapter, llmClient, ackSender)
	if !health.Store {
		logger.Critical("startup healthcheck failed: store unreachable")
		return exitEndpointUnreach
	}
	if !health.LLM {
		logger.Warn("startup healthcheck: LLM endpoint unreachable, request-time calls will fall back to deterministic paths")
	}
	if !health.Mail {
		logger.Warn("startup healthcheck: mail endpoint unreachable, acknowledgments will fail until it recovers")
	}

	deps := &orchestrator.Deps{
		Logger: logger,
		Dedup:  dedup.New(cfg.DedupTTL, cfg.DedupStatePath),
		LoopGuard: loopguard.Config{
			OutboundFromAddr: cfg.OutboundFromAddr,
			AckSubjectPrefix: cfg.InstallShortName,
			MarkerPhrase:     cfg.AckMarkerPhrase,
		},
		Classifier: classify.New(llmClient, cfg.LLMEnabled, cfg.InstallPrefix),
		Allocator:  ticketid.New(storeAdapter, cfg.InstallPrefix, cfg.InstallTimezone),
		Extractors: extract.New(llmClient, cfg.LLMEnabled),
		Parser:     conversation.NewParser(llmClient, cfg.LLMEnabled),
		Merger:     conversation.NewMerger(llmClient, cfg.LLMEnabled),
		Store:      storeAdapter,
		AckSender:  ackSender,
		AckTemplate: ack.Template{
			TextBody:         cfg.AckTemplateText,
			HTMLBody:         cfg.AckTemplateHTML,
			InstallShortName: cfg.InstallShortName,
		},
		RequestDeadline: cfg.RequestDeadline,
		Location:        cfg.InstallTimezone,
		Health:          health,
	}

	handler := orchestrator.New(deps)

	sweepStop := make(chan struct{})
	go runDedupSweeper(deps.Dedup, sweepStop)
	defer close(sweepStop)

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		logger.Critical("bind failed", log.KVErr(err), log.KV("addr", cfg.BindAddr))
		return exitBindFailure
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	logger.Info("listening", log.KV("addr", cfg.BindAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", log.KVErr(err))
		}
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Critical("server stopped unexpectedly", log.KVErr(err))
			return exitBindFailure
		}
	}

	return exitOK
}

// runDedupSweeper periodically evicts expired dedup entries (§4.3, §9's
// "lazy sweeper") until stop is closed. 30s matches the teacher's tick
// cadence for its own state-tracker sweep.
func runDedupSweeper(gate *dedup.Gate, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			gate.Sweep(now)
		case <-stop:
			return
		}
	}
}

// probeStartupHealth runs the lightweight reachability check of §6 exit
// code 3 against all three external collaborators before the gateway
// starts accepting traffic, and is also what GET /health reports
// thereafter. The store is the one collaborator whose unavailability is
// fatal to the NEW path (§4.12's END_5xx) and therefore to startup itself;
// LLM and mail failures degrade gracefully at request time, so they are
// recorded but not fatal.
func probeStartupHealth(storeAdapter *store.Adapter, llmClient *llm.Client, ackSender *ack.Sender) orchestrator.StartupHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var health orchestrator.StartupHealth
	if err := storeAdapter.Ping(ctx); err == nil {
		health.Store = true
	}
	if err := llmClient.Ping(ctx); err == nil {
		health.LLM = true
	}
	if err := ackSender.Ping(ctx); err == nil {
		health.Mail = true
	}
	return health
}
