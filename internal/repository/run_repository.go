package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

type RunRepositoryInterface interface {
	// Runs
	CreateRun(ctx context.Context, run *model.CampaignRun) error
	FinishRun(ctx context.Context, id uuid.UUID, status model.RunStatus, stats model.CampaignStats, completedAt time.Time) error
	GetRun(ctx context.Context, id uuid.UUID) (*model.CampaignRun, error)
	ListRuns(ctx context.Context, offset, limit int, status string) ([]*model.CampaignRun, int, error)

	// Outcomes
	RecordOutcome(ctx context.Context, rec model.OutcomeRecord) error
	ListOutcomes(ctx context.Context, runID uuid.UUID) ([]model.OutcomeRecord, error)
	GetRunStats(ctx context.Context, runID uuid.UUID) (map[string]int, error)
}

type RunRepository struct {
	DB *sql.DB
}

// ====================== Runs ======================

const runColumns = `id, channel_id, title, template_name, language, status, total, success, failed, started_at, completed_at`

func (r *RunRepository) CreateRun(ctx context.Context, run *model.CampaignRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	query := `
        INSERT INTO campaign_runs (id, channel_id, title, template_name, language, status, total, success, failed, started_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.DB.ExecContext(ctx, query,
		run.ID, run.ChannelID, run.Title, run.TemplateName, run.Language,
		run.Status, run.Total, run.Success, run.Failed, run.StartedAt)
	return err
}

func (r *RunRepository) FinishRun(ctx context.Context, id uuid.UUID, status model.RunStatus, stats model.CampaignStats, completedAt time.Time) error {
	query := `
        UPDATE campaign_runs
        SET status=$1, total=$2, success=$3, failed=$4, completed_at=$5
        WHERE id=$6
    `
	res, err := r.DB.ExecContext(ctx, query, status, stats.Total, stats.Success, stats.Failed, completedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewRunNotFound(id.String())
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*model.CampaignRun, error) {
	query := `SELECT ` + runColumns + ` FROM campaign_runs WHERE id=$1`

	run, err := scanRun(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewRunNotFound(id.String())
		}
		return nil, err
	}
	return run, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, offset, limit int, status string) ([]*model.CampaignRun, int, error) {
	runs := []*model.CampaignRun{}
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + runColumns + ` FROM campaign_runs` + where +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaign_runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.CampaignRun, error) {
	var run model.CampaignRun
	var completed sql.NullTime
	err := row.Scan(&run.ID, &run.ChannelID, &run.Title, &run.TemplateName, &run.Language,
		&run.Status, &run.Total, &run.Success, &run.Failed, &run.StartedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	return &run, nil
}

// ====================== Outcomes ======================

// RecordOutcome is idempotent: a redelivered record overwrites the row at the same position.
func (r *RunRepository) RecordOutcome(ctx context.Context, rec model.OutcomeRecord) error {
	query := `
        INSERT INTO campaign_outcomes (run_id, position, numero, status, message_id, detail, at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, position) DO UPDATE
        SET numero=EXCLUDED.numero, status=EXCLUDED.status, message_id=EXCLUDED.message_id,
            detail=EXCLUDED.detail, at=EXCLUDED.at
    `
	_, err := r.DB.ExecContext(ctx, query, rec.RunID, rec.Position, rec.Numero, rec.Status, rec.MessageID, rec.Detail, rec.At)
	return err
}

func (r *RunRepository) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]model.OutcomeRecord, error) {
	query := `
        SELECT run_id, position, numero, status, message_id, detail, at
        FROM campaign_outcomes
        WHERE run_id=$1
        ORDER BY position
    `
	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.OutcomeRecord{}
	for rows.Next() {
		var rec model.OutcomeRecord
		if err := rows.Scan(&rec.RunID, &rec.Position, &rec.Numero, &rec.Status, &rec.MessageID, &rec.Detail, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RunRepository) GetRunStats(ctx context.Context, runID uuid.UUID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_outcomes WHERE run_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{model.OutcomeStatusSent: 0, model.OutcomeStatusFailed: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ RunRepositoryInterface = (*RunRepository)(nil)
