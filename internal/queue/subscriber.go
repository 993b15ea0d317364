package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/repository"
)

const OutcomesTopic = "campaign_outcomes"

// OutcomeStore is the persistence the outcome subscriber needs.
type OutcomeStore interface {
	RecordOutcome(ctx context.Context, rec model.OutcomeRecord) error
}

var _ OutcomeStore = (repository.RunRepositoryInterface)(nil)

// StartOutcomeSubscriber persists every OutcomeRecord published on topic.
func StartOutcomeSubscriber(q Queue, topic string, store OutcomeStore, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return q.Subscribe(topic, func(payload any) error {
		rec, err := decodeOutcome(payload)
		if err != nil {
			logger.Warn("dropping invalid outcome payload", zap.Error(err))
			return nil // no retry
		}

		if err := store.RecordOutcome(context.Background(), rec); err != nil {
			logger.Warn("failed to persist outcome",
				zap.String("run_id", rec.RunID.String()),
				zap.Int("position", rec.Position),
				zap.Error(err))
			return err // retry
		}
		return nil
	})
}

func decodeOutcome(payload any) (model.OutcomeRecord, error) {
	switch p := payload.(type) {
	case model.OutcomeRecord:
		return p, nil
	case *model.OutcomeRecord:
		if p == nil {
			return model.OutcomeRecord{}, fmt.Errorf("nil outcome")
		}
		return *p, nil
	case []byte:
		var rec model.OutcomeRecord
		if err := json.Unmarshal(p, &rec); err != nil {
			return model.OutcomeRecord{}, err
		}
		return rec, nil
	default:
		return model.OutcomeRecord{}, fmt.Errorf("unexpected payload type %T", payload)
	}
}
