package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

// ChannelRepositoryInterface defines methods used by service
type ChannelRepositoryInterface interface {
	ListActive(ctx context.Context, canal string, statuses []string) ([]model.Channel, error)
	GetByNameID(ctx context.Context, nameID string) (*model.Channel, error)
}

// ChannelRepository reads sending mailboxes from whatsapp_channels
type ChannelRepository struct {
	DB *sql.DB
}

const channelColumns = `nameid, custom_name, canal, status, key, COALESCE(meta_id, '')`

// ListActive returns the channels of the given kind whose status is one of statuses, by display name.
func (r *ChannelRepository) ListActive(ctx context.Context, canal string, statuses []string) ([]model.Channel, error) {
	query := `
        SELECT ` + channelColumns + `
        FROM whatsapp_channels
        WHERE canal = $1 AND status = ANY($2)
        ORDER BY custom_name
    `
	rows, err := r.DB.QueryContext(ctx, query, canal, pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []model.Channel{}
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.NameID, &c.CustomName, &c.Canal, &c.Status, &c.Key, &c.MetaID); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (r *ChannelRepository) GetByNameID(ctx context.Context, nameID string) (*model.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM whatsapp_channels WHERE nameid = $1`

	var c model.Channel
	err := r.DB.QueryRowContext(ctx, query, nameID).
		Scan(&c.NameID, &c.CustomName, &c.Canal, &c.Status, &c.Key, &c.MetaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewChannelNotFound(nameID)
		}
		return nil, err
	}
	return &c, nil
}

var _ ChannelRepositoryInterface = (*ChannelRepository)(nil)
