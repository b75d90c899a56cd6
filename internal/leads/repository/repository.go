package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no lead matches the query.
	ErrNotFound = errors.New("lead not found")
	// ErrStatusChanged is returned when a guarded status update lost the race:
	// the lead exists but its status no longer matches the expected value.
	ErrStatusChanged = errors.New("lead status changed concurrently")
)

const leadColumns = `id, first_name, last_name, phone, email,
	source, priority, interested_language, interested_level, interested_format, budget,
	status, workflow_phase, withdrawal_reason, withdrawal_date,
	assigned_agent_id, user_id, last_contact_at, converted_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for services that need a transaction
// spanning this repository and others (e.g., the conversion unit of work).
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

type Lead struct {
	ID                 uuid.UUID
	FirstName          string
	LastName           string
	Phone              string
	Email              *string
	Source             string
	Priority           string
	InterestedLanguage *string
	InterestedLevel    *string
	InterestedFormat   *string
	Budget             *int64
	Status             string
	WorkflowPhase      string
	WithdrawalReason   *string
	WithdrawalDate     *time.Time
	AssignedAgentID    *uuid.UUID
	UserID             *uuid.UUID
	LastContactAt      *time.Time
	ConvertedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type CreateLeadParams struct {
	FirstName          string
	LastName           string
	Phone              string
	Email              *string
	Source             string
	Priority           string
	InterestedLanguage *string
	InterestedLevel    *string
	InterestedFormat   *string
	Budget             *int64
	Status             string
	WorkflowPhase      string
	AssignedAgentID    *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			first_name, last_name, phone, email,
			source, priority, interested_language, interested_level, interested_format, budget,
			status, workflow_phase, assigned_agent_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.Phone, params.Email,
		params.Source, params.Priority, params.InterestedLanguage, params.InterestedLevel, params.InterestedFormat, params.Budget,
		params.Status, params.WorkflowPhase, params.AssignedAgentID,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phone)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type UpdateLeadParams struct {
	FirstName          *string
	LastName           *string
	Phone              *string
	Email              *string
	Priority           *string
	InterestedLanguage *string
	InterestedLevel    *string
	InterestedFormat   *string
	Budget             *int64
	AssignedAgentID    *uuid.UUID
	AssignedAgentIDSet bool
}

// Update applies non-workflow field changes. Last write wins for these
// fields; status and withdrawal metadata have dedicated guarded methods.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	sets := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)
	args = append(args, id)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FirstName != nil {
		add("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		add("last_name", *params.LastName)
	}
	if params.Phone != nil {
		add("phone", *params.Phone)
	}
	if params.Email != nil {
		add("email", *params.Email)
	}
	if params.Priority != nil {
		add("priority", *params.Priority)
	}
	if params.InterestedLanguage != nil {
		add("interested_language", *params.InterestedLanguage)
	}
	if params.InterestedLevel != nil {
		add("interested_level", *params.InterestedLevel)
	}
	if params.InterestedFormat != nil {
		add("interested_format", *params.InterestedFormat)
	}
	if params.Budget != nil {
		add("budget", *params.Budget)
	}
	if params.AssignedAgentIDSet {
		add("assigned_agent_id", params.AssignedAgentID)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = now()")
	query := `UPDATE leads SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + leadColumns

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// UpdateStatusGuarded performs a compare-and-set status transition: the
// update only applies while the lead still has expectedStatus. When the guard
// fails, ErrStatusChanged or ErrNotFound tells the caller which case it hit.
func (r *Repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, expectedStatus, newStatus, newPhase string, stampContact bool) (Lead, error) {
	contact := ""
	if stampContact {
		contact = ", last_contact_at = now()"
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $3, workflow_phase = $4, updated_at = now()`+contact+`
		WHERE id = $1 AND status = $2
		RETURNING `+leadColumns,
		id, expectedStatus, newStatus, newPhase,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return Lead{}, getErr
		}
		return Lead{}, ErrStatusChanged
	}
	return lead, err
}

// SetWithdrawal records the withdrawal reason and timestamp. The caller has
// already transitioned the lead to lost; the guard keeps the metadata off a
// lead that converted in between.
func (r *Repository) SetWithdrawal(ctx context.Context, id uuid.UUID, reason string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET withdrawal_reason = $2, withdrawal_date = now(), workflow_phase = 'withdrawal', updated_at = now()
		WHERE id = $1 AND status = 'lost'
		RETURNING `+leadColumns,
		id, reason,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return Lead{}, getErr
		}
		return Lead{}, ErrStatusChanged
	}
	return lead, err
}

// Reactivate clears withdrawal metadata and returns the lead to the active
// workflow. Guarded on lost so a concurrent conversion is never overwritten.
func (r *Repository) Reactivate(ctx context.Context, id uuid.UUID, newStatus, newPhase string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, workflow_phase = $3, withdrawal_reason = NULL, withdrawal_date = NULL, updated_at = now()
		WHERE id = $1 AND status = 'lost'
		RETURNING `+leadColumns,
		id, newStatus, newPhase,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return Lead{}, getErr
		}
		return Lead{}, ErrStatusChanged
	}
	return lead, err
}

// MarkConvertedTx freezes the lead at converted inside the conversion
// transaction, linking the created account. The status guard excludes both
// terminal states: a raced second conversion and a lead that went lost in
// the meantime each update zero rows.
func (r *Repository) MarkConvertedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, userID uuid.UUID, phase string) (Lead, error) {
	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET status = 'converted', workflow_phase = $3, user_id = $2, converted_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ('converted', 'lost')
		RETURNING `+leadColumns,
		id, userID, phase,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return Lead{}, getErr
		}
		return Lead{}, ErrStatusChanged
	}
	return lead, err
}

// TouchLastContact stamps last_contact_at, used when a contact-type
// communication is logged.
func (r *Repository) TouchLastContact(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET last_contact_at = now(), updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListParams struct {
	Status          *string
	Phase           *string
	Priority        *string
	Source          *string
	AssignedAgentID *uuid.UUID
	DateFrom        *time.Time
	DateTo          *time.Time
	Search          string
	Offset          int
	Limit           int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	where := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	filter := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if params.Status != nil {
		filter("status = $%d", *params.Status)
	}
	if params.Phase != nil {
		filter("workflow_phase = $%d", *params.Phase)
	}
	if params.Priority != nil {
		filter("priority = $%d", *params.Priority)
	}
	if params.Source != nil {
		filter("source = $%d", *params.Source)
	}
	if params.AssignedAgentID != nil {
		filter("assigned_agent_id = $%d", *params.AssignedAgentID)
	}
	if params.DateFrom != nil {
		filter("created_at >= $%d", *params.DateFrom)
	}
	if params.DateTo != nil {
		filter("created_at <= $%d", *params.DateTo)
	}
	if strings.TrimSpace(params.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(params.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR phone ILIKE $%d)", n, n, n))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leads`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT `+leadColumns+`
		FROM leads%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.Email,
		&lead.Source, &lead.Priority, &lead.InterestedLanguage, &lead.InterestedLevel, &lead.InterestedFormat, &lead.Budget,
		&lead.Status, &lead.WorkflowPhase, &lead.WithdrawalReason, &lead.WithdrawalDate,
		&lead.AssignedAgentID, &lead.UserID, &lead.LastContactAt, &lead.ConvertedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}
