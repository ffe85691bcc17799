package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tickerflow/internal/api"
	"github.com/wonny/tickerflow/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 + 스케줄러 시작",
	Long: `REST API 서버와 스케줄러를 함께 시작합니다.

Endpoints:
  GET  /health             - Health check
  GET  /api/runs?limit=20  - 실행 이력
  GET  /api/runs/latest    - 최근 실행
  GET  /api/movers/latest  - 최근 성공 실행의 top movers
  POST /api/runs           - 파이프라인 즉시 실행 (202)
  GET  /ws/runs            - 단계별 리포트 스트림 (websocket)

Example:
  go run ./cmd/tickerflow api
  go run ./cmd/tickerflow api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tickerflow API Server ===")

	a, err := loadApp(context.Background(), false)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	hub := handlers.NewHub(a.log)
	defer hub.Close()

	sched, pipelineJob, err := initScheduler(a, hub)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	runHandler := handlers.NewRunHandler(a.history, sched, pipelineJob.Name(), a.log)
	router := api.NewRouter(runHandler, hub, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	sched.Start()

	a.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		sched.Stop()
		return err
	}

	a.log.Info("Shutting down server...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
