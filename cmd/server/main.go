package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cortex.ai/contract-desk/internal/api"
	"cortex.ai/contract-desk/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clauseFlag int

var rootCmd = &cobra.Command{
	Use:           "desk",
	Short:         "Contract desk: upload contracts, ask questions and negotiate clauses",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the desk HTTP API",
	RunE:  runServe,
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Print the working draft of the active contract",
	Long: `Fetch the clauses of the active contract and print them in order,
with accepted clause edits substituted for the original text.`,
	RunE: runDraft,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the question and answer history, newest first",
	RunE:  runHistory,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print the clause version timeline of the active contract",
	RunE:  runTimeline,
}

func init() {
	timelineCmd.Flags().IntVar(&clauseFlag, "clause", -1, "Only show events of this clause index")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(timelineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	apiHandler := api.NewAPIHandler(a.desk, a.negotiation, a.gateway, logger)
	router := api.NewRouter(apiHandler, logger)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(config.AppConfig.RequestTimeoutSeconds+15) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give in-flight requests time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

func runDraft(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.negotiation.RefreshClauses(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.negotiation.CompileDraft())
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.desk.History(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "[%s] Q: %s\n", e.CreatedAt.Format(time.RFC3339), e.Question)
		fmt.Fprintf(out, "A: %s\n\n", e.Answer)
	}
	return nil
}

func runTimeline(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var index *int
	if clauseFlag >= 0 {
		index = &clauseFlag
	}
	events, err := a.negotiation.Timeline(cmd.Context(), index)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}
