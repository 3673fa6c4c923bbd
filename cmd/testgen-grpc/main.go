// cmd/testgen-grpc/main.go
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rtl-testgen/internal/common/config"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/prompt"
	staticanalysis "rtl-testgen/internal/services/analysis/static-analysis"
	singlefile "rtl-testgen/internal/services/synthesis/single-file"
	"rtl-testgen/internal/transport/grpcserver"
	"rtl-testgen/pkg/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	reg, err := registry.LoadRegistry(cfg.Prompts.RegistryPath)
	if err != nil {
		zapLog.Fatal("prompt registry load failed", zap.Error(err))
	}

	backend, err := llm.New(cfg.LLM, log)
	if err != nil {
		zapLog.Fatal("llm backend init failed", zap.Error(err))
	}

	generator := singlefile.NewHandler(backend, prompt.NewBuilder(reg), staticanalysis.New(log), log)
	server := grpcserver.NewServer(generator, log)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		zapLog.Fatal("grpc listen failed", zap.String("address", cfg.Server.GRPCAddress), zap.Error(err))
	}

	go func() {
		zapLog.Info("gRPC server listening",
			zap.String("address", cfg.Server.GRPCAddress),
			zap.String("service", grpcserver.ServiceName),
			zap.String("model", backend.Model()),
		)
		if err := server.Serve(lis); err != nil {
			zapLog.Error("grpc server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping gRPC server...")
	server.GracefulStop()
	zapLog.Info("gRPC server stopped gracefully")
}
