package challan

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slipdesk/slipdesk/internal/platform/db"
	"github.com/slipdesk/slipdesk/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for challans. The
// timeline and verification notes live in append-only side tables keyed by
// (challan_id, seq); Save never rewrites an existing entry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const challanColumns = `id, number, payment_type,
	amount_total, amount_received, amount_forfeited, amount_extra, amount_cancelled,
	verify_status, verify_invoice,
	ship_to, services, gst, bill_no, bill_company, file_url, area, work_location,
	service_date, created_by, created_at, updated_at`

func scanChallan(row pgx.Row) (*Challan, error) {
	var ch Challan
	err := row.Scan(
		&ch.ID, &ch.Number, &ch.PaymentType,
		&ch.Amount.Total, &ch.Amount.Received, &ch.Amount.Forfeited, &ch.Amount.Extra, &ch.Amount.Cancelled,
		&ch.Verify.Status, &ch.Verify.Invoice,
		&ch.ShipTo, &ch.Services, &ch.GST, &ch.BillNo, &ch.BillCompany, &ch.FileURL, &ch.Area, &ch.WorkLocation,
		&ch.ServiceDate, &ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Insert persists a freshly created challan with its initial timeline.
func (r *Repository) Insert(ctx context.Context, ch *Challan) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO challans (`+challanColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
			ch.ID, ch.Number, ch.PaymentType,
			ch.Amount.Total, ch.Amount.Received, ch.Amount.Forfeited, ch.Amount.Extra, ch.Amount.Cancelled,
			ch.Verify.Status, ch.Verify.Invoice,
			ch.ShipTo, ch.Services, ch.GST, ch.BillNo, ch.BillCompany, ch.FileURL, ch.Area, ch.WorkLocation,
			ch.ServiceDate, ch.CreatedBy, ch.CreatedAt, ch.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("challan: insert row: %w", err)
		}
		return appendEntries(ctx, tx, ch)
	})
}

// Get loads one challan with its full timeline and notes.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Challan, error) {
	ch, err := scanChallan(r.pool.QueryRow(ctx, `SELECT `+challanColumns+` FROM challans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("challan %s: %w", id, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("challan: get: %w", err)
	}
	if err := r.loadTimelines(ctx, []*Challan{ch}); err != nil {
		return nil, err
	}
	if err := r.loadNotes(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Save persists ledger and header changes and appends any new timeline
// entries and notes. Existing entries are never updated or removed.
func (r *Repository) Save(ctx context.Context, ch *Challan) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE challans SET
	payment_type = $2,
	amount_total = $3, amount_received = $4, amount_forfeited = $5, amount_extra = $6, amount_cancelled = $7,
	verify_status = $8, verify_invoice = $9,
	gst = $10, bill_no = $11, bill_company = $12, file_url = $13, updated_at = $14
WHERE id = $1`,
			ch.ID, ch.PaymentType,
			ch.Amount.Total, ch.Amount.Received, ch.Amount.Forfeited, ch.Amount.Extra, ch.Amount.Cancelled,
			ch.Verify.Status, ch.Verify.Invoice,
			ch.GST, ch.BillNo, ch.BillCompany, ch.FileURL, ch.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("challan: update row: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("challan %s: %w", ch.ID, httpx.ErrNotFound)
		}
		return appendEntries(ctx, tx, ch)
	})
}

func appendEntries(ctx context.Context, tx pgx.Tx, ch *Challan) error {
	for _, u := range ch.Updates {
		_, err := tx.Exec(ctx, `INSERT INTO challan_updates (challan_id, seq, status, user_name, date, comment, job_date, images, type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (challan_id, seq) DO NOTHING`,
			ch.ID, u.Seq, u.Status, u.User, u.Date, u.Comment, u.JobDate, u.Images, u.Type,
		)
		if err != nil {
			return fmt.Errorf("challan: append update: %w", err)
		}
	}
	for _, n := range ch.Notes {
		_, err := tx.Exec(ctx, `INSERT INTO challan_verification_notes (challan_id, seq, note, user_name, date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (challan_id, seq) DO NOTHING`,
			ch.ID, n.Seq, n.Note, n.User, n.Date,
		)
		if err != nil {
			return fmt.Errorf("challan: append note: %w", err)
		}
	}
	return nil
}

// Delete removes a challan and its side tables. Only used as creation
// rollback; cancelled slips stay on record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM challan_verification_notes WHERE challan_id = $1`, id); err != nil {
			return fmt.Errorf("challan: delete notes: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM challan_updates WHERE challan_id = $1`, id); err != nil {
			return fmt.Errorf("challan: delete updates: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM challans WHERE id = $1`, id); err != nil {
			return fmt.Errorf("challan: delete row: %w", err)
		}
		return nil
	})
}

// List returns one page of challans filtered by search term and current
// status, newest first, plus the total match count.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Challan, int, error) {
	const baseFilter = `
FROM challans c
LEFT JOIN LATERAL (
	SELECT status FROM challan_updates u WHERE u.challan_id = c.id ORDER BY u.seq DESC LIMIT 1
) last ON true
WHERE ($1 = '' OR c.number ILIKE '%' || $1 || '%' OR c.ship_to->>'name' ILIKE '%' || $1 || '%')
  AND ($2 = '' OR last.status = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseFilter, q.Search, string(q.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("challan: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+prefixColumns("c.")+baseFilter+`
ORDER BY c.created_at DESC LIMIT $3 OFFSET $4`,
		q.Search, string(q.Status), q.PerPage, (q.Page-1)*q.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("challan: list: %w", err)
	}
	items, err := collectChallans(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadTimelines(ctx, refs(items)); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListUnverified returns slips still awaiting payment verification, ordered
// by service date.
func (r *Repository) ListUnverified(ctx context.Context, q UnverifiedQuery) ([]Challan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+prefixColumns("c.")+`
FROM challans c
LEFT JOIN LATERAL (
	SELECT status FROM challan_updates u WHERE u.challan_id = c.id ORDER BY u.seq DESC LIMIT 1
) last ON true
WHERE c.verify_status = false
  AND ($1 = '' OR c.number ILIKE '%' || $1 || '%' OR c.ship_to->>'name' ILIKE '%' || $1 || '%')
  AND ($2 = '' OR last.status = $2)
ORDER BY c.service_date`,
		q.Search, string(q.Status))
	if err != nil {
		return nil, fmt.Errorf("challan: list unverified: %w", err)
	}
	items, err := collectChallans(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadTimelines(ctx, refs(items)); err != nil {
		return nil, err
	}
	return items, nil
}

// SearchClients returns distinct clients whose name matches the term.
func (r *Repository) SearchClients(ctx context.Context, term string) ([]ClientMatch, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (ship_to->>'name') id, ship_to, gst
FROM challans
WHERE ship_to->>'name' ILIKE '%' || $1 || '%'
ORDER BY ship_to->>'name', created_at DESC
LIMIT 20`, term)
	if err != nil {
		return nil, fmt.Errorf("challan: search clients: %w", err)
	}
	defer rows.Close()
	matches := []ClientMatch{}
	for rows.Next() {
		var m ClientMatch
		if err := rows.Scan(&m.ID, &m.ShipTo, &m.GST); err != nil {
			return nil, fmt.Errorf("challan: scan client: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("challan: search clients: %w", err)
	}
	return matches, nil
}

// ListComments returns the canned operator comments ordered by label.
func (r *Repository) ListComments(ctx context.Context) ([]CommentOption, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, label, value FROM operator_comments ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("challan: list comments: %w", err)
	}
	defer rows.Close()
	options := []CommentOption{}
	for rows.Next() {
		var opt CommentOption
		if err := rows.Scan(&opt.ID, &opt.Label, &opt.Value); err != nil {
			return nil, fmt.Errorf("challan: scan comment: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("challan: list comments: %w", err)
	}
	return options, nil
}

// CurrentNumber reads the slip counter without advancing it.
func (r *Repository) CurrentNumber(ctx context.Context) (int64, error) {
	var value int64
	if err := r.pool.QueryRow(ctx, `SELECT value FROM challan_counters WHERE id = 1`).Scan(&value); err != nil {
		return 0, fmt.Errorf("challan: read counter: %w", err)
	}
	return value, nil
}

// IncrementNumber advances the slip counter. Called only after the creation
// saga fully succeeds.
func (r *Repository) IncrementNumber(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `UPDATE challan_counters SET value = value + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("challan: increment counter: %w", err)
	}
	return nil
}

func (r *Repository) loadTimelines(ctx context.Context, items []*Challan) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(items))
	byID := make(map[uuid.UUID]*Challan, len(items))
	for i, ch := range items {
		ids[i] = ch.ID
		byID[ch.ID] = ch
		ch.Updates = nil
	}
	rows, err := r.pool.Query(ctx, `SELECT challan_id, seq, status, user_name, date, comment, job_date, images, type
FROM challan_updates WHERE challan_id = ANY($1) ORDER BY challan_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("challan: load timelines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uuid.UUID
			u  Update
		)
		if err := rows.Scan(&id, &u.Seq, &u.Status, &u.User, &u.Date, &u.Comment, &u.JobDate, &u.Images, &u.Type); err != nil {
			return fmt.Errorf("challan: scan update: %w", err)
		}
		byID[id].Updates = append(byID[id].Updates, u)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("challan: load timelines: %w", err)
	}
	return nil
}

func (r *Repository) loadNotes(ctx context.Context, ch *Challan) error {
	rows, err := r.pool.Query(ctx, `SELECT seq, note, user_name, date
FROM challan_verification_notes WHERE challan_id = $1 ORDER BY seq`, ch.ID)
	if err != nil {
		return fmt.Errorf("challan: load notes: %w", err)
	}
	defer rows.Close()
	ch.Notes = nil
	for rows.Next() {
		var n VerificationNote
		if err := rows.Scan(&n.Seq, &n.Note, &n.User, &n.Date); err != nil {
			return fmt.Errorf("challan: scan note: %w", err)
		}
		ch.Notes = append(ch.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("challan: load notes: %w", err)
	}
	return nil
}

func collectChallans(rows pgx.Rows) ([]Challan, error) {
	defer rows.Close()
	var items []Challan
	for rows.Next() {
		ch, err := scanChallan(rows)
		if err != nil {
			return nil, fmt.Errorf("challan: scan row: %w", err)
		}
		items = append(items, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("challan: collect rows: %w", err)
	}
	return items, nil
}

func refs(items []Challan) []*Challan {
	out := make([]*Challan, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func prefixColumns(prefix string) string {
	return prefix + `id, ` + prefix + `number, ` + prefix + `payment_type,
	` + prefix + `amount_total, ` + prefix + `amount_received, ` + prefix + `amount_forfeited, ` + prefix + `amount_extra, ` + prefix + `amount_cancelled,
	` + prefix + `verify_status, ` + prefix + `verify_invoice,
	` + prefix + `ship_to, ` + prefix + `services, ` + prefix + `gst, ` + prefix + `bill_no, ` + prefix + `bill_company, ` + prefix + `file_url, ` + prefix + `area, ` + prefix + `work_location,
	` + prefix + `service_date, ` + prefix + `created_by, ` + prefix + `created_at, ` + prefix + `updated_at`
}
