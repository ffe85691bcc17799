package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/flowconfig"
	"github.com/wonny/tickerflow/internal/scheduler"
	"github.com/wonny/tickerflow/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록과 다음 실행 시각
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/tickerflow scheduler start
  go run ./cmd/tickerflow scheduler list
  go run ./cmd/tickerflow scheduler run pipeline`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- pipeline: pipeline.yaml 의 schedule (기본 매일 00:00)
- health_check: 5분마다 (redis / store 연결 확인)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tickerflow Scheduler ===")

	a, err := loadApp(context.Background(), false)
	if err != nil {
		return err
	}
	defer a.close()

	sched, _, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintSuccess("Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := loadApp(context.Background(), true)
	if err != nil {
		return err
	}
	defer a.close()

	sched, _, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	sched, _, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		PrintError(fmt.Sprintf("%s failed after %d attempt(s): %v", jobName, result.Attempts, err))
		return err
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	fmt.Println("\nRegistered jobs:")
	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		next := "(not started)"
		if t, err := sched.NextRun(jobName); err == nil && !t.IsZero() {
			next = t.Format("2006-01-02 15:04:05")
		}
		PrintKeyValue(jobName, fmt.Sprintf("%s  next=%s", stats[jobName].Schedule, next), 14)
	}
}

// initScheduler registers the pipeline and health check jobs
func initScheduler(a *app, observers ...contracts.Observer) (*scheduler.Scheduler, *jobs.PipelineJob, error) {
	if _, err := flowconfig.ParseSchedule(a.flow.Schedule); err != nil {
		return nil, nil, err
	}

	prov, err := a.provider()
	if err != nil {
		return nil, nil, err
	}

	p, err := a.newPipeline(prov, 0, observers...)
	if err != nil {
		return nil, nil, err
	}

	// 단계 재시도는 파이프라인이 담당; job 레벨 재시도 없음
	sched := scheduler.New(a.log, scheduler.Options{JobTimeout: a.flow.JobTimeout})

	pipelineJob := jobs.NewPipelineJob(p, a.flow.Universe, a.flow.LookbackDays, a.flow.Schedule, a.log)
	if err := sched.AddJob(pipelineJob); err != nil {
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewHealthCheckJob(a.pingTargets(), a.log)); err != nil {
		return nil, nil, err
	}

	return sched, pipelineJob, nil
}
