package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/farmflow/farmflow-backend/pkg/database"
	"github.com/farmflow/farmflow-backend/pkg/errors"
)

// ExpiryAlert represents an active expiry alert on a lot
type ExpiryAlert struct {
	ID              string    `db:"id" json:"id"`
	LotID           string    `db:"lot_id" json:"lot_id"`
	Tier            string    `db:"tier" json:"tier"`
	DaysUntilExpiry int       `db:"days_until_expiry" json:"days_until_expiry"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ExpiryAlertView is an alert joined with its lot and product for listing
type ExpiryAlertView struct {
	ExpiryAlert
	ProductID         string    `db:"product_id" json:"product_id"`
	ProductName       string    `db:"product_name" json:"product_name"`
	LotNumber         string    `db:"lot_number" json:"lot_number"`
	RemainingQuantity int       `db:"remaining_quantity" json:"remaining_quantity"`
	ExpiryDate        time.Time `db:"expiry_date" json:"expiry_date"`
}

// ClearedAlert identifies an alert removed by the cleanup pass
type ClearedAlert struct {
	LotID     string `db:"lot_id"`
	ProductID string `db:"product_id"`
	Tier      string `db:"tier"`
}

// TierCount is the number of active alerts at a tier
type TierCount struct {
	Tier  string `db:"tier"`
	Count int64  `db:"count"`
}

// AlertRepository handles expiry alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new alert
func (r *AlertRepository) Create(ctx context.Context, alert *ExpiryAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	query := `
		INSERT INTO expiry_alerts (id, lot_id, tier, days_until_expiry)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.LotID, alert.Tier, alert.DaysUntilExpiry,
	).Scan(&alert.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*ExpiryAlert, error) {
	var alert ExpiryAlert
	query := `SELECT * FROM expiry_alerts WHERE id = $1`
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &alert, nil
}

// ExistsForLotAtTier checks whether the lot already carries an alert at
// the given tier.
func (r *AlertRepository) ExistsForLotAtTier(ctx context.Context, lotID, tier string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM expiry_alerts WHERE lot_id = $1 AND tier = $2)`
	if err := r.db.GetContext(ctx, &exists, query, lotID, tier); err != nil {
		return false, err
	}
	return exists, nil
}

// DeleteForLot removes all alerts for a lot and returns how many were removed
func (r *AlertRepository) DeleteForLot(ctx context.Context, lotID string) (int64, error) {
	query := `DELETE FROM expiry_alerts WHERE lot_id = $1`
	result, err := r.db.ExecContext(ctx, query, lotID)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// List lists alerts joined with lot and product, most urgent first.
// Tier and product filters are optional.
func (r *AlertRepository) List(ctx context.Context, tier, productID string, page, perPage int) ([]*ExpiryAlertView, int64, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if tier != "" {
		args = append(args, tier)
		where += ` AND a.tier = $1`
	}
	if productID != "" {
		args = append(args, productID)
		if len(args) == 1 {
			where += ` AND l.product_id = $1`
		} else {
			where += ` AND l.product_id = $2`
		}
	}

	countQuery := `
		SELECT COUNT(*)
		FROM expiry_alerts a
		JOIN lots l ON l.id = a.lot_id` + where

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT a.id, a.lot_id, a.tier, a.days_until_expiry, a.created_at,
			l.product_id, p.name AS product_name, l.lot_number,
			l.remaining_quantity, l.expiry_date
		FROM expiry_alerts a
		JOIN lots l ON l.id = a.lot_id
		JOIN products p ON p.id = l.product_id` + where + `
		ORDER BY CASE a.tier
			WHEN 'EXPIRED' THEN 0
			WHEN 'CRITICAL' THEN 1
			WHEN 'ELEVATED' THEN 2
			ELSE 3
		END, l.expiry_date, a.created_at DESC`

	offset := (page - 1) * perPage
	switch len(args) {
	case 0:
		query += ` LIMIT $1 OFFSET $2`
	case 1:
		query += ` LIMIT $2 OFFSET $3`
	default:
		query += ` LIMIT $3 OFFSET $4`
	}
	args = append(args, perPage, offset)

	var alerts []*ExpiryAlertView
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// CountsByTier returns the number of active alerts per tier
func (r *AlertRepository) CountsByTier(ctx context.Context) ([]*TierCount, error) {
	var counts []*TierCount
	query := `
		SELECT tier, COUNT(*) AS count
		FROM expiry_alerts
		GROUP BY tier
	`
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, err
	}
	return counts, nil
}

// AtRiskQuantity returns the total remaining stock in lots that carry an
// alert at CRITICAL or EXPIRED.
func (r *AlertRepository) AtRiskQuantity(ctx context.Context) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(l.remaining_quantity)
		FROM expiry_alerts a
		JOIN lots l ON l.id = a.lot_id
		WHERE a.tier IN ('CRITICAL', 'EXPIRED')
	`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ProductAtRisk is a product rollup of critically expiring stock
type ProductAtRisk struct {
	ProductID   string `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
}

// CriticalProducts lists products holding stock under a CRITICAL or
// EXPIRED alert, worst first.
func (r *AlertRepository) CriticalProducts(ctx context.Context) ([]*ProductAtRisk, error) {
	query := `
		SELECT l.product_id, p.name AS product_name, SUM(l.remaining_quantity) AS quantity
		FROM expiry_alerts a
		JOIN lots l ON l.id = a.lot_id
		JOIN products p ON p.id = l.product_id
		WHERE a.tier IN ('CRITICAL', 'EXPIRED')
		GROUP BY l.product_id, p.name
		ORDER BY quantity DESC
	`

	var products []*ProductAtRisk
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// DeleteRecovered removes alerts whose lot has moved back outside the
// watch horizon, and reports what was cleared.
func (r *AlertRepository) DeleteRecovered(ctx context.Context, horizon time.Time) ([]*ClearedAlert, error) {
	query := `
		DELETE FROM expiry_alerts a
		USING lots l
		WHERE l.id = a.lot_id AND l.expiry_date > $1
		RETURNING a.lot_id, l.product_id, a.tier
	`

	var cleared []*ClearedAlert
	rows, err := r.db.QueryxContext(ctx, query, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c ClearedAlert
		if err := rows.StructScan(&c); err != nil {
			return nil, err
		}
		cleared = append(cleared, &c)
	}

	return cleared, rows.Err()
}
