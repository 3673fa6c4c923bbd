// cmd/testgen/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	commonhttp "rtl-testgen/internal/common/http"
	"rtl-testgen/internal/common/logger"
)

type rootOptions struct {
	gateway string
	timeout time.Duration
	retries int
	verbose bool
}

func (o *rootOptions) client() *commonhttp.ServiceClient {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return commonhttp.NewServiceClient(o.gateway, o.timeout,
		commonhttp.WithMaxRetries(o.retries),
		commonhttp.WithLogger(logger.NewStructured("testgen-cli", level, "console")),
	)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "testgen",
		Short: "Generate React Testing Library tests from component source",
		Long: `testgen sends React components to the test generation gateway and writes
the generated Jest + React Testing Library tests.

Examples:
  testgen generate src/components/Button.tsx --coverage smoke --out src/__tests__
  testgen validate src/__tests__/Button.test.tsx
  testgen stream src/components/Button.tsx > Button.test.tsx
  testgen single src/components/Button.tsx --grpc localhost:50051`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.gateway, "gateway", envOr("TESTGEN_GATEWAY", "http://localhost:8000"), "Gateway base URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Per-request timeout")
	rootCmd.PersistentFlags().IntVar(&opts.retries, "retries", 3, "Attempts for transient failures")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log retries and request details")

	rootCmd.AddCommand(newGenerateCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newStreamCmd(opts))
	rootCmd.AddCommand(newSingleCmd())
	rootCmd.AddCommand(newHealthCmd(opts))
	return rootCmd
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
