// Package model 定义排课引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// ClassItem 待排课程
// TotalConflicts 和 PartialConflicts 构造后不再修改
type ClassItem struct {
	BaseModel
	Name             string    `json:"name" db:"name"`
	GradeLevel       int       `json:"grade_level" db:"grade_level"`
	GradeGroup       string    `json:"grade_group" db:"grade_group"`
	Teacher          string    `json:"teacher,omitempty" db:"teacher"`
	TotalConflicts   []SlotRef `json:"total_conflicts,omitempty" db:"-"`
	PartialConflicts []SlotRef `json:"partial_conflicts,omitempty" db:"-"`
}

// NewClassItem 创建待排课程
func NewClassItem(name string, gradeLevel int, gradeGroup string) *ClassItem {
	return &ClassItem{
		BaseModel:  NewBaseModel(),
		Name:       name,
		GradeLevel: gradeLevel,
		GradeGroup: gradeGroup,
	}
}

// HasTotalConflict 检查某时段是否为硬冲突
func (c *ClassItem) HasTotalConflict(date string, period int) bool {
	for _, s := range c.TotalConflicts {
		if s.Date == date && s.Period == period {
			return true
		}
	}
	return false
}

// CountPartialConflicts 统计某时段的软冲突数
// 输入数据中的重复条目会被重复计数，使冲突更密集的时段惩罚更重
func (c *ClassItem) CountPartialConflicts(date string, period int) int {
	count := 0
	for _, s := range c.PartialConflicts {
		if s.Date == date && s.Period == period {
			count++
		}
	}
	return count
}

// NormalizeConflicts 规范化冲突集合
// 同一时段同时出现在两个集合时，硬冲突优先，软冲突条目被移除
func (c *ClassItem) NormalizeConflicts() {
	if len(c.TotalConflicts) == 0 || len(c.PartialConflicts) == 0 {
		return
	}
	total := make(map[SlotRef]bool, len(c.TotalConflicts))
	for _, s := range c.TotalConflicts {
		total[s] = true
	}
	kept := c.PartialConflicts[:0]
	for _, s := range c.PartialConflicts {
		if !total[s] {
			kept = append(kept, s)
		}
	}
	c.PartialConflicts = kept
}

// ScheduledClass 已排入时段的课程
type ScheduledClass struct {
	Class  *ClassItem `json:"class"`
	Date   string     `json:"date"`   // YYYY-MM-DD
	Period int        `json:"period"` // 1..MaxPeriodsPerDay
}

// ClassID 返回课程ID
func (s *ScheduledClass) ClassID() uuid.UUID {
	return s.Class.ID
}

// Slot 返回所在时段
func (s *ScheduledClass) Slot() SlotRef {
	return SlotRef{Date: s.Date, Period: s.Period}
}
