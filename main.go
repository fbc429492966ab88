package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sf-exporter/api"
	"sf-exporter/service"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	// Initialize structured logging (JSON format for Cloud Run)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using system environment variables")
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sf-exporter",
		Short:         "Run a warehouse query and export its rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		// RUN_MODE=job keeps the one-shot behaviour for container jobs.
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("RUN_MODE") == "job" {
				return runJob(cmd.Context(), jobFlags{})
			}
			return serve()
		},
	}
	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/export",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func newRunCmd() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one export and print the completion payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.paramsFile, "params", "", "YAML or JSON file with the invocation parameters")
	cmd.Flags().StringVar(&f.command, "command", "", "SQL statement to execute")
	cmd.Flags().StringVar(&f.commandFile, "command-file", "", "file holding the SQL statement")
	cmd.Flags().StringToStringVar(&f.args, "arg", nil, "placeholder values, key=value")
	cmd.Flags().StringVar(&f.driver, "driver", "", "warehouse driver: snowflake, bigquery or starrocks")
	cmd.Flags().StringVar(&f.jsonFile, "json", "", "export rows to this JSON file")
	cmd.Flags().StringVar(&f.xlsxFile, "xlsx", "", "export rows to this XLSX file")
	cmd.Flags().StringVar(&f.csvFile, "csv", "", "export rows to this CSV file")
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "materialize the result instead of using a cursor")
	return cmd
}

func newExecutor(reg prometheus.Registerer) *service.Executor {
	return service.NewExecutor(
		service.NewHTTPTokenSource(&http.Client{Timeout: 30 * time.Second}),
		service.DefaultDrivers(),
		service.WithMetrics(service.NewMetrics(reg)),
	)
}

func runJob(ctx context.Context, f jobFlags) error {
	params, err := loadParams(f)
	if err != nil {
		slog.Error("Failed to load parameters", "error", err)
		return err
	}

	res := newExecutor(nil).Run(ctx, params, nil)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	if res.End != service.EndOK {
		slog.Error("Job execution failed", "error", res.MessageLog)
		return errors.New(res.MessageLog)
	}
	slog.Info("Job execution completed", "rows", res.ExtraOutput["db_countrows"])
	return nil
}

func serve() error {
	// Release mode is better for production performance
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	r := api.NewRouter(api.RouterConfig{
		APIKey:   os.Getenv("API_KEY"),
		Gatherer: reg,
	}, newExecutor(reg))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		slog.Error("Failed to start server", "error", err)
		return err
	case <-quit:
	}
	slog.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
	return nil
}
