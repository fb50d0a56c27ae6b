// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
)

// ScheduleRecord 课表记录
type ScheduleRecord struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Status         string             `json:"status"` // draft/published/archived
	TotalClasses   int                `json:"total_classes"`
	ScheduledCount int                `json:"scheduled_count"`
	Score          *model.ScoreVector `json:"score,omitempty"`
	GeneratedAt    time.Time          `json:"generated_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ScheduleEntry 课表条目记录
type ScheduleEntry struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	ClassID    uuid.UUID `json:"class_id"`
	ClassName  string    `json:"class_name"`
	GradeLevel int       `json:"grade_level"`
	GradeGroup string    `json:"grade_group"`
	Teacher    string    `json:"teacher"`
	Date       string    `json:"date"`
	Period     int       `json:"period"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduleRepositoryInterface 课表仓储接口
type ScheduleRepositoryInterface interface {
	Create(ctx context.Context, record *ScheduleRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*ScheduleRecord, int, error)

	SaveGenerated(ctx context.Context, name string, schedule *model.Schedule) (*ScheduleRecord, error)
	GetEntries(ctx context.Context, scheduleID uuid.UUID) ([]*ScheduleEntry, error)
	DeleteEntries(ctx context.Context, scheduleID uuid.UUID) error
}

// ScheduleRepository 课表仓储实现
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建课表仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create 创建课表记录
func (r *ScheduleRepository) Create(ctx context.Context, record *ScheduleRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = "draft"
	}

	scoreJSON, _ := json.Marshal(record.Score)

	query := `
		INSERT INTO schedules (
			id, name, start_date, end_date, status,
			total_classes, scheduled_count, score,
			generated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Name, record.StartDate, record.EndDate, record.Status,
		record.TotalClasses, record.ScheduledCount, scoreJSON,
		record.GeneratedAt, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建课表记录失败")
	}
	return nil
}

// GetByID 按ID查询课表记录
func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleRecord, error) {
	query := `
		SELECT id, name, start_date, end_date, status,
		       total_classes, scheduled_count, score,
		       generated_at, created_at, updated_at
		FROM schedules WHERE id = $1`

	record := &ScheduleRecord{}
	var scoreJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Name, &record.StartDate, &record.EndDate, &record.Status,
		&record.TotalClasses, &record.ScheduledCount, &scoreJSON,
		&record.GeneratedAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("课表", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询课表记录失败")
	}

	if len(scoreJSON) > 0 {
		record.Score = &model.ScoreVector{}
		if err := json.Unmarshal(scoreJSON, record.Score); err != nil {
			record.Score = nil
		}
	}
	return record, nil
}

// UpdateStatus 更新课表状态
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE schedules SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "更新课表状态失败")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("课表", id.String())
	}
	return nil
}

// Delete 删除课表记录及其条目
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.DeleteEntries(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除课表记录失败")
	}
	return nil
}

// List 分页查询课表记录
func (r *ScheduleRepository) List(ctx context.Context, filter ListFilter) ([]*ScheduleRecord, int, error) {
	where := "WHERE 1=1"
	args := make([]interface{}, 0, 4)
	argIdx := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.StartDate != "" {
		where += fmt.Sprintf(" AND start_date >= $%d", argIdx)
		args = append(args, filter.StartDate)
		argIdx++
	}
	if filter.EndDate != "" {
		where += fmt.Sprintf(" AND end_date <= $%d", argIdx)
		args = append(args, filter.EndDate)
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM schedules " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计课表记录失败")
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := "DESC"
	if filter.OrderDir == "asc" {
		orderDir = "ASC"
	}

	query := fmt.Sprintf(
		"SELECT id, name, start_date, end_date, status, total_classes, scheduled_count, score, generated_at, created_at, updated_at FROM schedules %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, orderBy, orderDir, argIdx, argIdx+1,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询课表记录失败")
	}
	defer rows.Close()

	var records []*ScheduleRecord
	for rows.Next() {
		record := &ScheduleRecord{}
		var scoreJSON []byte
		if err := rows.Scan(
			&record.ID, &record.Name, &record.StartDate, &record.EndDate, &record.Status,
			&record.TotalClasses, &record.ScheduledCount, &scoreJSON,
			&record.GeneratedAt, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "读取课表记录失败")
		}
		if len(scoreJSON) > 0 {
			record.Score = &model.ScoreVector{}
			if err := json.Unmarshal(scoreJSON, record.Score); err != nil {
				record.Score = nil
			}
		}
		records = append(records, record)
	}
	return records, total, rows.Err()
}

// SaveGenerated 保存引擎产出的课表及全部条目
func (r *ScheduleRepository) SaveGenerated(ctx context.Context, name string, schedule *model.Schedule) (*ScheduleRecord, error) {
	record := &ScheduleRecord{
		ID:             schedule.ID,
		Name:           name,
		StartDate:      schedule.StartDate,
		EndDate:        schedule.EndDate,
		Status:         "draft",
		TotalClasses:   schedule.TotalCount(),
		ScheduledCount: schedule.ScheduledCount(),
		Score:          schedule.Score,
		GeneratedAt:    time.Now(),
	}
	if err := r.Create(ctx, record); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO schedule_entries (
			id, schedule_id, class_id, class_name, grade_level, grade_group, teacher,
			date, period, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	for _, sc := range schedule.Classes {
		_, err := r.db.ExecContext(ctx, query,
			uuid.New(), record.ID, sc.ClassID(), sc.Class.Name,
			sc.Class.GradeLevel, sc.Class.GradeGroup, sc.Class.Teacher,
			sc.Date, sc.Period, now,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "保存课表条目失败")
		}
	}
	return record, nil
}

// GetEntries 查询课表的全部条目
func (r *ScheduleRepository) GetEntries(ctx context.Context, scheduleID uuid.UUID) ([]*ScheduleEntry, error) {
	query := `
		SELECT id, schedule_id, class_id, class_name, grade_level, grade_group, teacher,
		       date, period, created_at
		FROM schedule_entries WHERE schedule_id = $1
		ORDER BY date, period`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询课表条目失败")
	}
	defer rows.Close()

	var entries []*ScheduleEntry
	for rows.Next() {
		entry := &ScheduleEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.ScheduleID, &entry.ClassID, &entry.ClassName,
			&entry.GradeLevel, &entry.GradeGroup, &entry.Teacher,
			&entry.Date, &entry.Period, &entry.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取课表条目失败")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntries 删除课表的全部条目
func (r *ScheduleRepository) DeleteEntries(ctx context.Context, scheduleID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE schedule_id = $1`, scheduleID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除课表条目失败")
	}
	return nil
}
