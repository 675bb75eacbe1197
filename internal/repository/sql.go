package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"digipet-api/internal/model"
)

// dialect captures the SQL differences between the supported engines.
type dialect struct {
	name string
	// weekdayMatch returns a WHERE fragment testing that the weekdays column
	// contains day, and its bind argument.
	weekdayMatch func(day time.Weekday) (string, any)
}

// SQLStore implements Store on database/sql. Timestamps are stored as unix
// milliseconds so the same queries serve every dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

const petColumns = `id, owner_id, name, species, breed, health, mood, happiness, created_at, updated_at`

const taskColumns = `id, pet_id, kind, due_at, weekdays, completed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPet(row rowScanner) (*model.Pet, error) {
	var (
		p                    model.Pet
		owner                sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &owner, &p.Name, &p.Species, &p.Breed,
		&p.Health, &p.Mood, &p.Happiness, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		id := owner.Int64
		p.OwnerID = &id
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func scanTask(row rowScanner) (*model.ScheduledTask, error) {
	var (
		t        model.ScheduledTask
		kind     string
		dueAt    int64
		weekdays string
	)
	if err := row.Scan(&t.ID, &t.PetID, &kind, &dueAt, &weekdays, &t.Completed); err != nil {
		return nil, err
	}
	days, err := model.ParseWeekdayList(weekdays)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", t.ID, err)
	}
	t.Kind = model.TaskKind(kind)
	t.DueAt = fromMillis(dueAt)
	t.Weekdays = days
	return &t, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullOwner(owner *int64) sql.NullInt64 {
	if owner == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *owner, Valid: true}
}

// FindPet returns the pet with id, or ErrNotFound.
func (s *SQLStore) FindPet(ctx context.Context, id int64) (*model.Pet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = ?`, id)
	p, err := scanPet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pet %d: %w", id, err)
	}
	return p, nil
}

// ListPets returns pets matching filter ordered by id.
func (s *SQLStore) ListPets(ctx context.Context, filter PetFilter) ([]model.Pet, error) {
	var (
		where []string
		args  []any
	)
	switch filter.Adoption {
	case AdoptionOwned:
		where = append(where, "owner_id IS NOT NULL")
	case AdoptionAvailable:
		where = append(where, "owner_id IS NULL")
	}
	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}

	query := `SELECT ` + petColumns + ` FROM pets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	defer rows.Close()

	pets := []model.Pet{}
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pet: %w", err)
		}
		pets = append(pets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	return pets, nil
}

// CreatePet inserts p and assigns its ID.
func (s *SQLStore) CreatePet(ctx context.Context, p *model.Pet) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	query := `INSERT INTO pets (owner_id, name, species, breed, health, mood, happiness, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{nullOwner(p.OwnerID), p.Name, p.Species, p.Breed,
		p.Health, p.Mood, p.Happiness, toMillis(p.CreatedAt), toMillis(p.UpdatedAt)}
	if p.ID != 0 {
		query = `INSERT INTO pets (id, owner_id, name, species, breed, health, mood, happiness, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = append([]any{p.ID}, args...)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create pet: %w", err)
	}
	if p.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read pet id: %w", err)
		}
		p.ID = id
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func savePet(ctx context.Context, db execer, p *model.Pet) error {
	res, err := db.ExecContext(ctx, `
		UPDATE pets SET owner_id = ?, name = ?, species = ?, breed = ?,
			health = ?, mood = ?, happiness = ?, updated_at = ?
		WHERE id = ?`,
		nullOwner(p.OwnerID), p.Name, p.Species, p.Breed,
		p.Health, p.Mood, p.Happiness, toMillis(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to save pet %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save pet %d: %w", p.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePet overwrites an existing pet.
func (s *SQLStore) SavePet(ctx context.Context, p *model.Pet) error {
	return savePet(ctx, s.db, p)
}

// FindScheduledTasksDue returns pending tasks due at now on now's weekday.
func (s *SQLStore) FindScheduledTasksDue(ctx context.Context, now time.Time) ([]model.ScheduledTask, error) {
	now = now.UTC()
	clause, dayArg := s.dialect.weekdayMatch(now.Weekday())
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks
		WHERE completed = ? AND due_at <= ? AND ` + clause + `
		ORDER BY id`

	return s.queryTasks(ctx, query, false, toMillis(now), dayArg)
}

// ListScheduledTasks returns every task for a pet.
func (s *SQLStore) ListScheduledTasks(ctx context.Context, petID int64) ([]model.ScheduledTask, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE pet_id = ? ORDER BY id`, petID)
}

func (s *SQLStore) queryTasks(ctx context.Context, query string, args ...any) ([]model.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.ScheduledTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query scheduled tasks: %w", err)
	}
	return tasks, nil
}

func saveTask(ctx context.Context, db execer, t *model.ScheduledTask) error {
	if t.ID == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO scheduled_tasks (pet_id, kind, due_at, weekdays, completed)
			VALUES (?, ?, ?, ?, ?)`,
			t.PetID, string(t.Kind), toMillis(t.DueAt), t.Weekdays.String(), t.Completed)
		if err != nil {
			return fmt.Errorf("failed to insert scheduled task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read scheduled task id: %w", err)
		}
		t.ID = id
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET pet_id = ?, kind = ?, due_at = ?, weekdays = ?, completed = ?
		WHERE id = ?`,
		t.PetID, string(t.Kind), toMillis(t.DueAt), t.Weekdays.String(), t.Completed, t.ID)
	if err != nil {
		return fmt.Errorf("failed to save scheduled task %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save scheduled task %d: %w", t.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveScheduledTask inserts or overwrites t.
func (s *SQLStore) SaveScheduledTask(ctx context.Context, t *model.ScheduledTask) error {
	return saveTask(ctx, s.db, t)
}

// SaveFeeding persists p and t in one transaction.
func (s *SQLStore) SaveFeeding(ctx context.Context, p *model.Pet, t *model.ScheduledTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := savePet(ctx, tx, p); err != nil {
		return err
	}
	if err := saveTask(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats returns row counts.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pets`).Scan(&st.Pets); err != nil {
		return Stats{}, fmt.Errorf("failed to count pets: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pets WHERE owner_id IS NOT NULL`).Scan(&st.AdoptedPets); err != nil {
		return Stats{}, fmt.Errorf("failed to count adopted pets: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_tasks WHERE completed = ?`, false).Scan(&st.PendingTasks); err != nil {
		return Stats{}, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	return st, nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the engine name.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
