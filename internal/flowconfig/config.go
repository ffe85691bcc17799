package flowconfig

import (
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
)

// Quality modes
const (
	QualityLenient = "lenient" // 빈 시리즈: 종목 제외
	QualityStrict  = "strict"  // 빈 시리즈: 배치 실패
)

// Config는 파이프라인 실행 설정 (YAML)
type Config struct {
	Universe       []string              `yaml:"universe" json:"universe"`
	LookbackDays   int                   `yaml:"lookback_days" json:"lookback_days"`
	TopN           int                   `yaml:"top_n" json:"top_n"`
	QualityMode    string                `yaml:"quality_mode" json:"quality_mode"`
	Workers        int                   `yaml:"workers" json:"workers"`
	Schedule       string                `yaml:"schedule" json:"schedule"`
	JobTimeout     time.Duration         `yaml:"job_timeout" json:"job_timeout"`
	PartitionRetry contracts.RetryPolicy `yaml:"partition_retry" json:"partition_retry"`
	Stages         Stages                `yaml:"stages" json:"stages"`
}

// Stages holds the retry policy of every stage
type Stages struct {
	Fetch      contracts.RetryPolicy `yaml:"fetch" json:"fetch"`
	Quality    contracts.RetryPolicy `yaml:"quality" json:"quality"`
	Indicators contracts.RetryPolicy `yaml:"indicators" json:"indicators"`
	Persist    contracts.RetryPolicy `yaml:"persist" json:"persist"`
	Report     contracts.RetryPolicy `yaml:"report" json:"report"`
	Rank       contracts.RetryPolicy `yaml:"rank" json:"rank"`
}

// Policies returns the stage → policy map consumed by the pipeline
func (s Stages) Policies() map[contracts.Stage]contracts.RetryPolicy {
	return map[contracts.Stage]contracts.RetryPolicy{
		contracts.StageFetch:      s.Fetch,
		contracts.StageQuality:    s.Quality,
		contracts.StageIndicators: s.Indicators,
		contracts.StagePersist:    s.Persist,
		contracts.StageEmit:       s.Report,
		contracts.StageRank:       s.Rank,
	}
}

// DefaultUniverse is a B3 sample used when no universe is configured
var DefaultUniverse = []string{
	"ABEV3.SA", "B3SA3.SA", "BBAS3.SA", "BBDC4.SA", "ELET3.SA",
	"ITUB4.SA", "PETR3.SA", "PETR4.SA", "VALE3.SA", "WEGE3.SA",
}

// Default returns the configuration used for fields absent from the file.
// Every stage retries 3 times with a 10s delay, except quality which is deterministic.
func Default() Config {
	standard := contracts.RetryPolicy{MaxRetries: 3, Backoff: 10 * time.Second}

	return Config{
		Universe:     append([]string(nil), DefaultUniverse...),
		LookbackDays: 120,
		TopN:         3,
		QualityMode:  QualityLenient,
		Workers:      4,
		Schedule:     "0 0 0 * * *",
		JobTimeout:   2 * time.Hour,
		PartitionRetry: contracts.RetryPolicy{
			MaxRetries: 2,
			Backoff:    time.Second,
		},
		Stages: Stages{
			Fetch:      standard,
			Quality:    contracts.RetryPolicy{},
			Indicators: standard,
			Persist:    standard,
			Report:     standard,
			Rank:       standard,
		},
	}
}
