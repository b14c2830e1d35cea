package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"player-auction/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// MySQLLedgerRepository is the durable ledger: teams, players, rosters and the
// per-player bid audit trail.
type MySQLLedgerRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLLedgerRepository(db *sql.DB) *MySQLLedgerRepository {
	return &MySQLLedgerRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *MySQLLedgerRepository) GetParty(ctx context.Context, partyRef string) (*domain.Party, error) {
	query := `
        SELECT id, name, approved, remaining_budget
        FROM teams WHERE id = ?
    `

	var party domain.Party
	err := r.db.QueryRowContext(ctx, query, partyRef).Scan(
		&party.ID, &party.Name, &party.Approved, &party.RemainingBudget)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", partyRef, domain.ErrNotFound)
		}
		return nil, err
	}

	return &party, nil
}

func (r *MySQLLedgerRepository) GetItem(ctx context.Context, itemRef string) (*domain.Item, error) {
	query := `
        SELECT id, name, base_value, status, sold_price, owner_team_id
        FROM players WHERE id = ?
    `

	var item domain.Item
	var status string
	var soldPrice decimal.NullDecimal
	var owner sql.NullString

	err := r.db.QueryRowContext(ctx, query, itemRef).Scan(
		&item.ID, &item.Name, &item.BaseValue, &status, &soldPrice, &owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %s: %w", itemRef, domain.ErrNotFound)
		}
		return nil, err
	}

	item.Status = domain.ItemStatus(status)
	if soldPrice.Valid {
		item.SoldPrice = soldPrice.Decimal
	}
	item.OwnerRef = owner.String
	return &item, nil
}

// CommitSale records the sale in one transaction. The player must still be
// available and the team must still be approved and able to pay; otherwise
// nothing is written.
func (r *MySQLLedgerRepository) CommitSale(ctx context.Context, itemRef, partyRef string,
	amount decimal.Decimal, bidLog []domain.Bid) error {
	now := r.now()

	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE players SET status = ?, sold_price = ?, owner_team_id = ?
            WHERE id = ? AND status = ?
        `, string(domain.ItemSold), amount, partyRef, itemRef, string(domain.ItemAvailable))
		if err := expectOneRow(res, err, domain.ErrItemUnavailable, itemRef); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `
            UPDATE teams SET remaining_budget = remaining_budget - ?
            WHERE id = ? AND approved = TRUE AND remaining_budget >= ?
        `, amount, partyRef, amount)
		if err := expectOneRow(res, err, domain.ErrInsufficientFunds, partyRef); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO team_roster (team_id, player_id, price, acquired_at)
            VALUES (?, ?, ?, ?)
        `, partyRef, itemRef, amount, now); err != nil {
			return err
		}

		return insertBidHistory(ctx, tx, itemRef, bidLog)
	})
}

func (r *MySQLLedgerRepository) CommitUnsold(ctx context.Context, itemRef string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE players SET status = ?
        WHERE id = ? AND status = ?
    `, string(domain.ItemUnsold), itemRef, string(domain.ItemAvailable))
	return expectOneRow(res, err, domain.ErrItemUnavailable, itemRef)
}

func expectOneRow(res sql.Result, err error, miss error, ref string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", ref, miss)
	}
	return nil
}
