package bid

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procurehub/procurehub/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
	UpdateBidStatus(ctx context.Context, id int64, status Status, version int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetBid returns the bid header used by the status machine.
func (r *Repository) GetBid(ctx context.Context, id int64) (Bid, error) {
	var b Bid
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, status, amount, version FROM bids WHERE id=$1`, id).
		Scan(&b.ID, &b.Number, &status, &b.Amount, &b.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bid{}, ErrNotFound
		}
		return Bid{}, err
	}
	b.Status = Status(status)
	return b, nil
}

const itemColumns = `id, bid_id, rfq_item_id, product_id, unit_price, quantity, total,
delivery_days, spec_compliance, compliance_scores, deviations, alternative,
warranty, after_sales, spare_parts, training, evaluation, version, created_at, updated_at`

// GetItem returns one bid line.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM bid_items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// ListItems returns the lines of one bid ordered by id.
func (r *Repository) ListItems(ctx context.Context, bidID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM bid_items WHERE bid_id=$1 ORDER BY id`, bidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateItem inserts a bid line.
func (tx *txRepo) CreateItem(ctx context.Context, item Item) (int64, error) {
	blobs, err := marshalItemBlobs(item)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.tx.QueryRow(ctx, `INSERT INTO bid_items
(bid_id, rfq_item_id, product_id, unit_price, quantity, total, delivery_days, spec_compliance,
 compliance_scores, deviations, alternative, warranty, after_sales, spare_parts, training, evaluation,
 version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,0,NOW(),NOW())
RETURNING id`,
		item.BidID, item.RFQItemID, item.ProductID, item.UnitPrice, item.Quantity, item.Total,
		item.DeliveryDays, string(item.SpecCompliance),
		blobs.scores, blobs.deviations, blobs.alternative, blobs.warranty,
		blobs.afterSales, blobs.spareParts, blobs.training, blobs.evaluation,
	).Scan(&id)
	return id, err
}

// UpdateItem writes a recomputed line under its version; stale versions fail
// with shared.ErrVersionConflict.
func (tx *txRepo) UpdateItem(ctx context.Context, item Item) error {
	blobs, err := marshalItemBlobs(item)
	if err != nil {
		return err
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE bid_items SET
unit_price=$1, quantity=$2, total=$3, delivery_days=$4, spec_compliance=$5,
compliance_scores=$6, deviations=$7, alternative=$8, warranty=$9, after_sales=$10,
spare_parts=$11, training=$12, evaluation=$13, version=version+1, updated_at=NOW()
WHERE id=$14 AND version=$15`,
		item.UnitPrice, item.Quantity, item.Total, item.DeliveryDays, string(item.SpecCompliance),
		blobs.scores, blobs.deviations, blobs.alternative, blobs.warranty,
		blobs.afterSales, blobs.spareParts, blobs.training, blobs.evaluation,
		item.ID, item.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

// UpdateBidStatus moves the bid header under its version.
func (tx *txRepo) UpdateBidStatus(ctx context.Context, id int64, status Status, version int64) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE bids SET status=$1, version=version+1, updated_at=NOW()
WHERE id=$2 AND version=$3`, string(status), id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

type itemBlobs struct {
	scores      []byte
	deviations  []byte
	alternative []byte
	warranty    []byte
	afterSales  []byte
	spareParts  []byte
	training    []byte
	evaluation  []byte
}

func marshalItemBlobs(item Item) (itemBlobs, error) {
	var blobs itemBlobs
	var err error
	if blobs.scores, err = json.Marshal(item.Scores); err != nil {
		return itemBlobs{}, err
	}
	deviations := item.Deviations
	if deviations == nil {
		deviations = []Deviation{}
	}
	if blobs.deviations, err = json.Marshal(deviations); err != nil {
		return itemBlobs{}, err
	}
	if blobs.alternative, err = json.Marshal(item.Alternative); err != nil {
		return itemBlobs{}, err
	}
	if blobs.warranty, err = json.Marshal(item.Warranty); err != nil {
		return itemBlobs{}, err
	}
	if blobs.afterSales, err = json.Marshal(item.AfterSales); err != nil {
		return itemBlobs{}, err
	}
	if blobs.spareParts, err = json.Marshal(item.SpareParts); err != nil {
		return itemBlobs{}, err
	}
	if blobs.training, err = json.Marshal(item.Training); err != nil {
		return itemBlobs{}, err
	}
	if blobs.evaluation, err = json.Marshal(item.Evaluation); err != nil {
		return itemBlobs{}, err
	}
	return blobs, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var compliance string
	var scores, deviations, alternative, warranty, afterSales, spareParts, training, evaluation []byte
	err := row.Scan(&item.ID, &item.BidID, &item.RFQItemID, &item.ProductID, &item.UnitPrice,
		&item.Quantity, &item.Total, &item.DeliveryDays, &compliance,
		&scores, &deviations, &alternative, &warranty, &afterSales, &spareParts, &training, &evaluation,
		&item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.SpecCompliance = Compliance(compliance)
	for _, blob := range []struct {
		data   []byte
		target any
	}{
		{scores, &item.Scores},
		{deviations, &item.Deviations},
		{alternative, &item.Alternative},
		{warranty, &item.Warranty},
		{afterSales, &item.AfterSales},
		{spareParts, &item.SpareParts},
		{training, &item.Training},
		{evaluation, &item.Evaluation},
	} {
		if len(blob.data) == 0 {
			continue
		}
		if err := json.Unmarshal(blob.data, blob.target); err != nil {
			return Item{}, err
		}
	}
	return item, nil
}
