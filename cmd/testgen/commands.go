package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	commonhttp "rtl-testgen/internal/common/http"
	"rtl-testgen/internal/models"
	"rtl-testgen/internal/transport/grpcserver"
)

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var coverage, outDir string

	cmd := &cobra.Command{
		Use:   "generate [component-file]",
		Short: "Generate test files for a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}

			req := models.GenerateRequest{
				ComponentPath:   args[0],
				ComponentSource: source,
				Goals:           models.Goals{Coverage: models.Coverage(coverage)},
			}
			var resp models.GenerateResponse
			if err := opts.client().Post(cmd.Context(), "/v1/tests/generate", req, &resp); err != nil {
				return describeError(err)
			}

			for _, w := range resp.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return writeTests(cmd.OutOrStdout(), outDir, resp.Tests)
		},
	}

	cmd.Flags().StringVar(&coverage, "coverage", string(models.CoverageInteractions), "Coverage level: smoke, interactions, comprehensive")
	cmd.Flags().StringVar(&outDir, "out", "", "Write test files into this directory instead of stdout")
	return cmd
}

// writeTests prints each file, or writes it under outDir using only the base filename.
func writeTests(w io.Writer, outDir string, tests []models.TestFile) error {
	if outDir == "" {
		for _, t := range tests {
			fmt.Fprintf(w, "// %s\n%s\n", t.Filename, t.Code)
		}
		return nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}
	for _, t := range tests {
		path := filepath.Join(outDir, filepath.Base(t.Filename))
		if err := os.WriteFile(path, []byte(t.Code), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintln(w, "wrote", path)
	}
	return nil
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [test-file]",
		Short: "Check a test file for non-accessible queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}

			var resp models.ValidateResponse
			req := models.ValidateRequest{FilePath: args[0], Source: source}
			if err := opts.client().Post(cmd.Context(), "/v1/tests/validate", req, &resp); err != nil {
				return describeError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quality score: %.2f\n", resp.QualityScore)
			for _, f := range resp.Fixes {
				fmt.Fprintf(out, "- %s (confidence %.2f): %s\n", f.File, f.Confidence, f.Reason)
			}
			return nil
		},
	}
}

func newStreamCmd(opts *rootOptions) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "stream [component-file]",
		Short: "Stream a generated test file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}

			body, err := opts.client().OpenStream(cmd.Context(), "/generate_test", models.StreamRequest{
				ComponentCode: source,
				Model:         model,
			})
			if err != nil {
				return describeError(err)
			}
			defer body.Close()

			_, err = io.Copy(cmd.OutOrStdout(), body)
			return err
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Override the configured model")
	return cmd
}

func newSingleCmd() *cobra.Command {
	var addr, name string

	cmd := &cobra.Command{
		Use:   "single [component-file]",
		Short: "Generate one test file through the gRPC service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}

			client, err := grpcserver.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.GenerateTest(cmd.Context(), models.TestRequest{ComponentCode: source, ComponentName: name})
			if err != nil {
				return err
			}
			if !resp.Success {
				return errors.New(resp.ErrorMessage)
			}
			if resp.ErrorMessage != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", resp.ErrorMessage)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.TestCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "grpc", "localhost:50051", "gRPC server address")
	cmd.Flags().StringVar(&name, "name", "", "Component name (guessed from the source when empty)")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the gateway and its dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.HealthResponse
			if err := opts.client().Get(cmd.Context(), "/healthz/full", &resp); err != nil {
				return describeError(err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}

// describeError surfaces the gateway's error body instead of the bare status.
func describeError(err error) error {
	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details string `json:"details"`
		}
		if json.Unmarshal([]byte(statusErr.Body), &body) == nil && body.Code != "" {
			return fmt.Errorf("%s: %s (%s)", body.Code, body.Message, body.Details)
		}
	}
	return err
}
