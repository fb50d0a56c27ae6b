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

// ClassRepositoryInterface 课程目录仓储接口
type ClassRepositoryInterface interface {
	Create(ctx context.Context, class *model.ClassItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ClassItem, error)
	Update(ctx context.Context, class *model.ClassItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*model.ClassItem, int, error)
}

// ClassRepository 课程目录仓储实现
// 冲突集合以 JSONB 存储，读取后即视为不可变
type ClassRepository struct {
	db DB
}

// NewClassRepository 创建课程目录仓储
func NewClassRepository(db DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create 创建课程
func (r *ClassRepository) Create(ctx context.Context, class *model.ClassItem) error {
	if class.ID == uuid.Nil {
		class.ID = uuid.New()
	}
	now := time.Now()
	class.CreatedAt = now
	class.UpdatedAt = now

	totalJSON, _ := json.Marshal(class.TotalConflicts)
	partialJSON, _ := json.Marshal(class.PartialConflicts)

	query := `
		INSERT INTO classes (
			id, name, grade_level, grade_group, teacher,
			total_conflicts, partial_conflicts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		class.ID, class.Name, class.GradeLevel, class.GradeGroup, class.Teacher,
		totalJSON, partialJSON, class.CreatedAt, class.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建课程失败")
	}
	return nil
}

// GetByID 按ID查询课程
func (r *ClassRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ClassItem, error) {
	query := `
		SELECT id, name, grade_level, grade_group, teacher,
		       total_conflicts, partial_conflicts, created_at, updated_at
		FROM classes WHERE id = $1`

	class, err := scanClass(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("课程", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询课程失败")
	}
	return class, nil
}

// Update 更新课程
func (r *ClassRepository) Update(ctx context.Context, class *model.ClassItem) error {
	class.UpdatedAt = time.Now()

	totalJSON, _ := json.Marshal(class.TotalConflicts)
	partialJSON, _ := json.Marshal(class.PartialConflicts)

	query := `
		UPDATE classes SET
			name = $1, grade_level = $2, grade_group = $3, teacher = $4,
			total_conflicts = $5, partial_conflicts = $6, updated_at = $7
		WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		class.Name, class.GradeLevel, class.GradeGroup, class.Teacher,
		totalJSON, partialJSON, class.UpdatedAt, class.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "更新课程失败")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("课程", class.ID.String())
	}
	return nil
}

// Delete 删除课程
func (r *ClassRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除课程失败")
	}
	return nil
}

// List 分页查询课程
func (r *ClassRepository) List(ctx context.Context, filter ListFilter) ([]*model.ClassItem, int, error) {
	where := "WHERE 1=1"
	args := make([]interface{}, 0, 3)
	argIdx := 1

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR teacher ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classes "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计课程失败")
	}

	query := fmt.Sprintf(
		"SELECT id, name, grade_level, grade_group, teacher, total_conflicts, partial_conflicts, created_at, updated_at FROM classes %s ORDER BY grade_level, name LIMIT $%d OFFSET $%d",
		where, argIdx, argIdx+1,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询课程失败")
	}
	defer rows.Close()

	var classes []*model.ClassItem
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "读取课程失败")
		}
		classes = append(classes, class)
	}
	return classes, total, rows.Err()
}

// rowScanner 行扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanClass 从行扫描课程
func scanClass(row rowScanner) (*model.ClassItem, error) {
	class := &model.ClassItem{}
	var totalJSON, partialJSON []byte

	err := row.Scan(
		&class.ID, &class.Name, &class.GradeLevel, &class.GradeGroup, &class.Teacher,
		&totalJSON, &partialJSON, &class.CreatedAt, &class.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(totalJSON) > 0 {
		json.Unmarshal(totalJSON, &class.TotalConflicts)
	}
	if len(partialJSON) > 0 {
		json.Unmarshal(partialJSON, &class.PartialConflicts)
	}
	class.NormalizeConflicts()
	return class, nil
}
