package mysql

import (
	"context"
	"database/sql"

	"player-auction/internal/domain"
)

// insertBidHistory appends a round's accepted bids, in acceptance order, to the
// player's audit trail.
func insertBidHistory(ctx context.Context, tx *sql.Tx, itemRef string, bidLog []domain.Bid) error {
	query := `
        INSERT INTO player_bid_history (player_id, team_id, amount, bid_at, seq)
        VALUES (?, ?, ?, ?, ?)
    `
	for i, bid := range bidLog {
		if _, err := tx.ExecContext(ctx, query,
			itemRef, bid.PartyRef, bid.Amount, bid.Timestamp, i+1); err != nil {
			return err
		}
	}
	return nil
}

// GetBidHistory returns the recorded bids for a sold player, oldest first.
func (r *MySQLLedgerRepository) GetBidHistory(ctx context.Context, itemRef string) ([]domain.Bid, error) {
	query := `
        SELECT h.team_id, t.name, h.amount, h.bid_at
        FROM player_bid_history h
        JOIN teams t ON t.id = h.team_id
        WHERE h.player_id = ?
        ORDER BY h.seq ASC
    `

	rows, err := r.db.QueryContext(ctx, query, itemRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []domain.Bid{}
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.PartyRef, &bid.PartyName, &bid.Amount, &bid.Timestamp); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}

	return bids, rows.Err()
}
