// Command worker runs the reference Processing Worker's HTTP server
// standalone, so the wire protocol can be exercised end to end without a
// hosted translation/embedding model.
package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/monlai-dev/tip-pipeline/internal/config"
	"github.com/monlai-dev/tip-pipeline/internal/obslog"
	"github.com/monlai-dev/tip-pipeline/internal/worker/httpserver"
	"github.com/monlai-dev/tip-pipeline/internal/worker/reference"
)

func main() {
	cfg := config.Load()

	log, err := obslog.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker: logger setup:", err)
		os.Exit(1)
	}
	defer log.Sync()

	svc, err := reference.New(cfg.TargetLanguage)
	if err != nil {
		log.Fatal("worker: service setup failed", zap.Error(err))
	}

	srv := httpserver.New(svc, log)
	addr := fmt.Sprintf(":%d", cfg.WorkerPort)
	log.Info("worker: listening", zap.String("addr", addr), zap.String("target_language", cfg.TargetLanguage))

	if err := http.ListenAndServe(addr, srv); err != nil {
		log.Fatal("worker: server stopped", zap.Error(err))
	}
}
