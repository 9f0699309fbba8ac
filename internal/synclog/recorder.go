package synclog

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Error summaries are truncated so one noisy batch cannot bloat the table.
const maxErrorSummaryLen = 2000

// Entry describes one execution to record.
type Entry struct {
	SyncType string
	Source   string
	Status   string

	LocationsProcessed int
	AssetsProcessed    int
	ReadingsProcessed  int
	Errors             []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder writes sync log rows.
type Recorder struct {
	log   *zap.Logger
	genID *snowflake.Node
	store repository.Repository[SyncLog]
}

// Params are the Recorder dependencies.
type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

// NewRecorder constructs a Recorder.
func NewRecorder(p Params) *Recorder {
	return &Recorder{
		log:   p.Log.Named("synclog.recorder"),
		genID: p.GenID,
		store: repository.ProvideStore[SyncLog](p.DB),
	}
}

// Record writes exactly one row for the execution. Failures are logged and
// swallowed: a broken audit trail must not fail the ingestion response.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	row := SyncLog{
		ID:                 r.genID.Generate(),
		SyncType:           entry.SyncType,
		Source:             entry.Source,
		Status:             entry.Status,
		LocationsProcessed: entry.LocationsProcessed,
		AssetsProcessed:    entry.AssetsProcessed,
		ReadingsProcessed:  entry.ReadingsProcessed,
		ErrorCount:         len(entry.Errors),
		ErrorSummary:       summarizeErrors(entry.Errors),
		DurationMS:         entry.FinishedAt.Sub(entry.StartedAt).Milliseconds(),
		StartedAt:          entry.StartedAt,
		FinishedAt:         entry.FinishedAt,
	}

	if err := r.store.Create(ctx, &row); err != nil {
		r.log.Error("sync log write failed",
			zap.String("sync_type", entry.SyncType),
			zap.String("status", entry.Status),
			zap.Error(err),
		)
	}
}

func summarizeErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	joined := strings.Join(errs, "; ")
	if len(joined) > maxErrorSummaryLen {
		joined = joined[:maxErrorSummaryLen]
	}
	return joined
}
