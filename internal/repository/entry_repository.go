package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-agenda-api/internal/models"
)

const entryColumns = "id, kind, term, week, week_start, week_end, grade, class_id, subject_id, teacher_id, topic, note, sub_event_day, sub_event_date, sub_event_period, status, approver_id, comments, linked_event_id, created_at, updated_at"

// EntryRepository provides persistence for plan entries.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new entry repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// List returns entries with optional filtering and pagination.
func (r *EntryRepository) List(ctx context.Context, filter models.EntryFilter) ([]models.PlanEntry, int, error) {
	base := "FROM plan_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Term > 0 {
		conditions = append(conditions, fmt.Sprintf("term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.Week > 0 {
		conditions = append(conditions, fmt.Sprintf("week = $%d", len(args)+1))
		args = append(args, filter.Week)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"term":       true,
		"week":       true,
		"created_at": true,
		"status":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", entryColumns, base, sortBy, order, size, offset)
	var entries []models.PlanEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list plan entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plan entries: %w", err)
	}

	return entries, total, nil
}

// FindByID loads an entry by id.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.PlanEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM plan_entries WHERE id = $1", entryColumns)
	var entry models.PlanEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByTermWeek returns every entry inside one (term, week) scope,
// spanning both kinds: the set the conflict validator reasons over.
// Day and slot collisions cross the kind boundary, so the scope must
// too.
func (r *EntryRepository) ListByTermWeek(ctx context.Context, term, week int) ([]models.PlanEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM plan_entries WHERE term = $1 AND week = $2", entryColumns)
	var entries []models.PlanEntry
	if err := r.db.SelectContext(ctx, &entries, query, term, week); err != nil {
		return nil, fmt.Errorf("list plan entries by term week: %w", err)
	}
	return entries, nil
}

// Create stores a new plan entry.
func (r *EntryRepository) Create(ctx context.Context, entry *models.PlanEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO plan_entries (id, kind, term, week, week_start, week_end, grade, class_id, subject_id, teacher_id, topic, note, sub_event_day, sub_event_date, sub_event_period, status, approver_id, comments, linked_event_id, created_at, updated_at) VALUES (:id, :kind, :term, :week, :week_start, :week_end, :grade, :class_id, :subject_id, :teacher_id, :topic, :note, :sub_event_day, :sub_event_date, :sub_event_period, :status, :approver_id, :comments, :linked_event_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create plan entry: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an entry, including its
// approval status so edit-driven transitions persist atomically.
func (r *EntryRepository) Update(ctx context.Context, entry *models.PlanEntry) error {
	entry.UpdatedAt = time.Now().UTC()

	const query = `UPDATE plan_entries SET term = :term, week = :week, week_start = :week_start, week_end = :week_end, grade = :grade, class_id = :class_id, subject_id = :subject_id, topic = :topic, note = :note, sub_event_day = :sub_event_day, sub_event_date = :sub_event_date, sub_event_period = :sub_event_period, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update plan entry: %w", err)
	}
	return nil
}

// UpdateDecision records an approval decision.
func (r *EntryRepository) UpdateDecision(ctx context.Context, id string, status models.ApprovalStatus, approverID string, comments *string) error {
	const query = `UPDATE plan_entries SET status = $1, approver_id = $2, comments = $3, updated_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, status, approverID, comments, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update plan entry decision: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("plan entry %s not found", id)
	}
	return nil
}

// SetLinkedEvent stores or clears the materialized booking reference.
func (r *EntryRepository) SetLinkedEvent(ctx context.Context, id string, linkedEventID *string) error {
	const query = `UPDATE plan_entries SET linked_event_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, linkedEventID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set plan entry linked event: %w", err)
	}
	return nil
}

// Delete removes an entry permanently.
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plan_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan entry: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("plan entry %s not found", id)
	}
	return nil
}
