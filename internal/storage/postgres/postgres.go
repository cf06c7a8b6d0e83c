package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/storage"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/types/payment"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

const (
	constraintOrderNumber      = "bookings_order_number_key"
	constraintPaymentReference = "bookings_payment_reference_key"
	constraintTransactionRef   = "payments_transaction_reference_key"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	// make sure the database is reachable
	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	// create tables
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            order_number TEXT NOT NULL,
            payment_reference TEXT NOT NULL,
            pickup_date TIMESTAMPTZ NOT NULL,
            delivery_date TIMESTAMPTZ NOT NULL,
            time_slot TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL,
            special_instructions TEXT NOT NULL DEFAULT '',
            total NUMERIC(12,2) NOT NULL,
            payment_method TEXT NOT NULL,
            payment_status TEXT NOT NULL,
            booking_status TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            CONSTRAINT bookings_order_number_key UNIQUE (order_number),
            CONSTRAINT bookings_payment_reference_key UNIQUE (payment_reference)
        )`,
		`CREATE INDEX IF NOT EXISTS bookings_user_created_idx ON bookings (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS booking_items (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            quantity INT NOT NULL,
            unit_price NUMERIC(12,2) NOT NULL,
            price NUMERIC(12,2) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS booking_items_booking_idx ON booking_items (booking_id)`,
		`CREATE TABLE IF NOT EXISTS payments (
            id TEXT PRIMARY KEY,
            booking_id TEXT NOT NULL REFERENCES bookings(id),
            user_id TEXT NOT NULL,
            amount NUMERIC(12,2) NOT NULL,
            payment_method TEXT NOT NULL,
            payment_status TEXT NOT NULL,
            transaction_reference TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            CONSTRAINT payments_transaction_reference_key UNIQUE (transaction_reference)
        )`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) CreateBooking(ctx context.Context, b *booking.Booking, p *payment.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const qBooking = `
        INSERT INTO bookings (id, user_id, order_number, payment_reference, pickup_date, delivery_date,
            time_slot, address, special_instructions, total, payment_method, payment_status,
            booking_status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (payment_reference) DO NOTHING`
	res, err := tx.ExecContext(ctx, qBooking,
		b.ID, b.UserID, b.OrderNumber, b.PaymentReference, b.PickupDate, b.DeliveryDate,
		b.TimeSlot, b.Address, b.SpecialInstructions, b.Total, b.PaymentMethod, b.PaymentStatus,
		b.BookingStatus, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return mapInsertErr("insert booking", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicate
	}

	const qItem = `
        INSERT INTO booking_items (id, booking_id, name, quantity, unit_price, price, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, it := range b.Items {
		if _, err := tx.ExecContext(ctx, qItem,
			it.ID, b.ID, it.Name, it.Quantity, it.UnitPrice, it.Price, it.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert booking item: %w", err)
		}
	}

	const qPayment = `
        INSERT INTO payments (id, booking_id, user_id, amount, payment_method, payment_status,
            transaction_reference, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := tx.ExecContext(ctx, qPayment,
		p.ID, b.ID, p.UserID, p.Amount, p.PaymentMethod, p.PaymentStatus,
		p.TransactionReference, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return mapInsertErr("insert payment", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func mapInsertErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintOrderNumber:
			return storage.ErrOrderNumberTaken
		case constraintPaymentReference, constraintTransactionRef:
			return storage.ErrDuplicate
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

const bookingColumns = `id, user_id, order_number, payment_reference, pickup_date, delivery_date,
    time_slot, address, special_instructions, total, payment_method, payment_status,
    booking_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (booking.Booking, error) {
	var b booking.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.OrderNumber, &b.PaymentReference, &b.PickupDate, &b.DeliveryDate,
		&b.TimeSlot, &b.Address, &b.SpecialInstructions, &b.Total, &b.PaymentMethod, &b.PaymentStatus,
		&b.BookingStatus, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *PostgresStorage) FindBookingByID(ctx context.Context, id string) (*booking.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := s.itemsFor(ctx, []string{b.ID})
	if err != nil {
		return nil, err
	}
	b.Items = items[b.ID]
	return &b, nil
}

func (s *PostgresStorage) ListBookings(ctx context.Context, f booking.Filter) ([]booking.Booking, int, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("booking_status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(order_number ILIKE $%d OR address ILIKE $%d)", len(args), len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, cond, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out []booking.Booking
		ids []string
	)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return out, total, nil
	}

	items, err := s.itemsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, total, nil
}

func (s *PostgresStorage) itemsFor(ctx context.Context, bookingIDs []string) (map[string][]booking.Item, error) {
	const q = `
        SELECT id, booking_id, name, quantity, unit_price, price, created_at
        FROM booking_items
        WHERE booking_id = ANY($1)
        ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, bookingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]booking.Item, len(bookingIDs))
	for rows.Next() {
		var it booking.Item
		if err := rows.Scan(&it.ID, &it.BookingID, &it.Name, &it.Quantity, &it.UnitPrice, &it.Price, &it.CreatedAt); err != nil {
			return nil, err
		}
		out[it.BookingID] = append(out[it.BookingID], it)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateBookingStatus(ctx context.Context, id string, from, to booking.Status) error {
	const q = `
        UPDATE bookings
        SET booking_status = $1, updated_at = $2
        WHERE id = $3 AND booking_status = $4`
	res, err := s.db.ExecContext(ctx, q, to, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	return s.checkUpdated(ctx, s.db, res, id)
}

func (s *PostgresStorage) UpdatePaymentStatus(ctx context.Context, id string, from, to booking.PaymentStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
        UPDATE bookings
        SET payment_status = $1, updated_at = $2
        WHERE id = $3 AND payment_status = $4`, to, now, id, from)
	if err != nil {
		return err
	}
	if err := s.checkUpdated(ctx, tx, res, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE payments
        SET payment_status = $1, updated_at = $2
        WHERE booking_id = $3`, to, now, id); err != nil {
		return err
	}
	return tx.Commit()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkUpdated tells a missing booking apart from a status that moved underneath us.
func (s *PostgresStorage) checkUpdated(ctx context.Context, db queryRower, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.ErrConflict
}

func (s *PostgresStorage) FindPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	const q = `
    SELECT id, booking_id, user_id, amount, payment_method, payment_status,
        transaction_reference, created_at, updated_at
    FROM payments WHERE transaction_reference = $1`
	var p payment.Payment
	err := s.db.QueryRowContext(ctx, q, reference).
		Scan(&p.ID, &p.BookingID, &p.UserID, &p.Amount, &p.PaymentMethod, &p.PaymentStatus,
			&p.TransactionReference, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
