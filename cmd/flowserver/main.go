// Command flowserver runs a flowengine Engine behind the HTTP surface in
// internal/httpapi, backed by a SQLite store. The default FLOWSERVER_DB is
// an in-memory SQLite database, so runs survive restarts only when
// FLOWSERVER_DB names an on-disk database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowrun/flowengine"
	"github.com/flowrun/flowengine/internal/httpapi"
	"github.com/flowrun/flowengine/internal/queue"
	sqlitestore "github.com/flowrun/flowengine/internal/store/sqlite"
	"github.com/flowrun/flowengine/pkg/flow"
)

func main() {
	logger := flowengine.DefaultLogger()

	addr := envOr("FLOWSERVER_ADDR", ":8088")
	dbPath := envOr("FLOWSERVER_DB", "file:flowserver.db?mode=memory&cache=shared")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		logger.Error("sql.Open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st, err := sqlitestore.New(db)
	if err != nil {
		logger.Error("sqlite store init failed", "error", err)
		os.Exit(1)
	}

	eng := flowengine.NewEngine(st, queue.NewInMemoryQueue(),
		flowengine.WithMaxConcurrent(5),
		flowengine.WithLogger(logger),
		flowengine.WithObserver(flowengine.NewLoggingObserver(logger)),
	)

	registerDemoFlows(eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logger.Error("engine start failed", "error", err)
		os.Exit(1)
	}

	server := httpapi.New(eng, logger)
	httpServer := &http.Server{Addr: addr, Handler: server}

	go func() {
		logger.Info("flowserver listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("engine stop failed", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// registerDemoFlows wires up a minimal built-in flow so a freshly started
// flowserver has something runnable out of the box. Its input arrives
// over HTTP as a decoded map[string]any rather than a concrete Go type,
// so it reads the field by hand instead of going through flow.Typed.
func registerDemoFlows(eng *flowengine.Engine) {
	eng.RegisterFlow(echoFlow{})
}

type echoFlow struct{}

func (echoFlow) Name() string { return "echo" }

func (echoFlow) Run(ctx context.Context, input any, rc *flow.RunContext) <-chan flow.Emission {
	out := make(chan flow.Emission)
	go func() {
		defer close(out)
		out <- flow.Emission{Element: "a"}
		out <- flow.Emission{Element: "b"}

		var message string
		if m, ok := input.(map[string]any); ok {
			message, _ = m["message"].(string)
		}
		rc.SetResult(echoResult{Echoed: message})
	}()
	return out
}

type echoResult struct {
	Echoed string `json:"echoed"`
}
