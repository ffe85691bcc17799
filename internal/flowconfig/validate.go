package flowconfig

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wonny/tickerflow/internal/contracts"
)

// minHistoryDays is roughly the calendar span holding 50 trading sessions
const minHistoryDays = 75

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 *contracts.ConfigurationError 반환 (실행 전 중단)
func Validate(cfg *Config) error {
	if err := ValidateUniverse(cfg.Universe); err != nil {
		return err
	}
	if cfg.LookbackDays < 1 {
		return &contracts.ConfigurationError{Field: "lookback_days", Message: "must be >= 1"}
	}
	if cfg.TopN < 1 {
		return &contracts.ConfigurationError{Field: "top_n", Message: "must be >= 1"}
	}
	if cfg.QualityMode != QualityLenient && cfg.QualityMode != QualityStrict {
		return &contracts.ConfigurationError{
			Field:   "quality_mode",
			Message: fmt.Sprintf("must be %q or %q", QualityLenient, QualityStrict),
		}
	}
	if cfg.Workers < 1 {
		return &contracts.ConfigurationError{Field: "workers", Message: "must be >= 1"}
	}
	if _, err := ParseSchedule(cfg.Schedule); err != nil {
		return &contracts.ConfigurationError{Field: "schedule", Message: err.Error()}
	}
	if cfg.JobTimeout < 0 {
		return &contracts.ConfigurationError{Field: "job_timeout", Message: "must be >= 0"}
	}

	if err := validatePolicy("partition_retry", cfg.PartitionRetry); err != nil {
		return err
	}
	for stage, p := range cfg.Stages.Policies() {
		if err := validatePolicy("stages."+stage.String(), p); err != nil {
			return err
		}
	}

	return nil
}

// ValidateUniverse rejects empty universes, blank and duplicate symbols
func ValidateUniverse(symbols []string) error {
	if len(symbols) == 0 {
		return &contracts.ConfigurationError{Field: "universe", Message: "must not be empty"}
	}

	seen := make(map[string]struct{}, len(symbols))
	for i, s := range symbols {
		if strings.TrimSpace(s) == "" {
			return &contracts.ConfigurationError{Field: fmt.Sprintf("universe[%d]", i), Message: "blank symbol"}
		}
		if _, dup := seen[s]; dup {
			return &contracts.ConfigurationError{Field: fmt.Sprintf("universe[%d]", i), Message: "duplicate symbol " + s}
		}
		seen[s] = struct{}{}
	}
	return nil
}

// ParseSchedule parses a six-field cron spec (seconds first)
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

// Warn returns recommendations that do not block a run
func Warn(cfg *Config) []Warning {
	var ws []Warning

	if cfg.LookbackDays < minHistoryDays {
		ws = append(ws, Warning{
			Code:    "short_lookback",
			Message: fmt.Sprintf("lookback_days=%d is unlikely to hold 50 sessions; SMA_50 will be absent", cfg.LookbackDays),
		})
	}
	if cfg.TopN > len(cfg.Universe) {
		ws = append(ws, Warning{
			Code:    "top_n_exceeds_universe",
			Message: fmt.Sprintf("top_n=%d exceeds universe size %d", cfg.TopN, len(cfg.Universe)),
		})
	}
	if cfg.QualityMode == QualityStrict {
		ws = append(ws, Warning{
			Code:    "strict_quality",
			Message: "one empty series will fail the whole run",
		})
	}

	return ws
}

func validatePolicy(field string, p contracts.RetryPolicy) error {
	if p.MaxRetries < 0 {
		return &contracts.ConfigurationError{Field: field + ".max_retries", Message: "must be >= 0"}
	}
	if p.Backoff < 0 {
		return &contracts.ConfigurationError{Field: field + ".backoff", Message: "must be >= 0"}
	}
	return nil
}
