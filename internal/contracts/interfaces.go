package contracts

import (
	"context"
	"time"
)

// Provider supplies a raw daily series for one symbol
// ⭐ SSOT: 시세 수집 인터페이스
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, rng DateRange) (*DataSeries, error)
}

// PartitionStore is a key-path blob store. Write overwrites.
// ⭐ SSOT: 파티션 저장 인터페이스
type PartitionStore interface {
	Write(ctx context.Context, path string, payload []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
}

// ReportEmitter renders the consolidated table and the movers table
type ReportEmitter interface {
	EmitConsolidated(ctx context.Context, runDate time.Time, rows []ReportRow) error
	EmitMovers(ctx context.Context, runDate time.Time, movers Movers) error
}

// Observer is notified after every stage finishes (including failed attempts)
type Observer interface {
	OnStage(runID string, report StageReport)
}

// RunRecorder persists run history
type RunRecorder interface {
	RecordRun(ctx context.Context, result *RunResult) error
}
