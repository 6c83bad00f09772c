package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type ticketModel struct {
	bun.BaseModel `bun:"table:tickets"`

	ID               string    `bun:"id,pk"`
	SeatID           int64     `bun:"seat_id,notnull,unique"`
	FlightID         int64     `bun:"flight_id,notnull"`
	SeatNumber       int       `bun:"seat_number,notnull"`
	Passenger        string    `bun:"passenger,notnull"`
	Email            string    `bun:"email,notnull"`
	AccountID        string    `bun:"account_id,notnull"`
	PaymentStatus    string    `bun:"payment_status,notnull"`
	PaymentReference string    `bun:"payment_reference,notnull"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

func (m *ticketModel) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:               m.ID,
		SeatID:           m.SeatID,
		FlightID:         m.FlightID,
		SeatNumber:       m.SeatNumber,
		Passenger:        m.Passenger,
		Email:            m.Email,
		AccountID:        m.AccountID,
		PaymentStatus:    domain.PaymentStatus(m.PaymentStatus),
		PaymentReference: m.PaymentReference,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// BunLedger keeps tickets in SQLite through bun. It backs single-node runs,
// the load simulator and tests.
type BunLedger struct {
	db  *bun.DB
	now func() time.Time
}

// OpenSQLite opens (and creates the schema of) a SQLite ledger. dsn ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, dsn string) (*BunLedger, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every connection to :memory: is its own database, and SQLite serialises writers anyway.
	sqldb.SetMaxOpenConns(1)

	l := NewBunLedger(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := l.CreateSchema(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return l, nil
}

func NewBunLedger(db *bun.DB) *BunLedger {
	return &BunLedger{db: db, now: time.Now}
}

func (l *BunLedger) CreateSchema(ctx context.Context) error {
	if _, err := l.db.NewCreateTable().Model((*ticketModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create tickets table: %w", err)
	}
	for name, column := range map[string]string{
		"tickets_flight_id_idx":  "flight_id",
		"tickets_account_id_idx": "account_id",
	} {
		if _, err := l.db.NewCreateIndex().Model((*ticketModel)(nil)).
			Index(name).IfNotExists().Column(column, "created_at").Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

func (l *BunLedger) Close() error {
	return l.db.Close()
}

func (l *BunLedger) Create(ctx context.Context, nt NewTicket) (*domain.Ticket, error) {
	now := l.now().UTC()
	m := &ticketModel{
		ID:               uuid.NewString(),
		SeatID:           nt.SeatID,
		FlightID:         nt.FlightID,
		SeatNumber:       nt.SeatNumber,
		Passenger:        nt.Passenger,
		Email:            nt.Email,
		AccountID:        nt.AccountID,
		PaymentStatus:    string(paymentStatusOrDefault(nt.PaymentStatus)),
		PaymentReference: nt.PaymentReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := l.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isSQLiteUnique(err) {
			return nil, domain.ErrSeatAlreadyTicketed
		}
		return nil, fmt.Errorf("create ticket for seat %d: %w", nt.SeatID, err)
	}
	t := m.toDomain()
	return &t, nil
}

func (l *BunLedger) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var m ticketModel
	err := l.db.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	t := m.toDomain()
	return &t, nil
}

func (l *BunLedger) ListByFlight(ctx context.Context, flightID int64) ([]domain.Ticket, error) {
	return l.list(ctx, "flight_id = ?", flightID)
}

func (l *BunLedger) ListByAccount(ctx context.Context, accountID string) ([]domain.Ticket, error) {
	return l.list(ctx, "account_id = ?", accountID)
}

func (l *BunLedger) list(ctx context.Context, where string, arg any) ([]domain.Ticket, error) {
	var models []ticketModel
	if err := l.db.NewSelect().Model(&models).Where(where, arg).
		Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	tickets := make([]domain.Ticket, 0, len(models))
	for i := range models {
		tickets = append(tickets, models[i].toDomain())
	}
	return tickets, nil
}

// Both drivers sqliteshim may pick report constraint failures with this text.
func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Ledger = (*BunLedger)(nil)
