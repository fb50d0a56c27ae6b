// Package validator 提供课表验证功能
package validator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictDuplicateClass ConflictType = "duplicate_class" // 课程重复排入
	ConflictDoubleBooking  ConflictType = "double_booking"  // 时段重复占用
	ConflictTotal          ConflictType = "total_conflict"  // 排在硬冲突时段
	ConflictBlackout       ConflictType = "blackout"        // 排在禁排时段
	ConflictMaxPerDay      ConflictType = "max_per_day"     // 超过每日上限
	ConflictMaxPerWeek     ConflictType = "max_per_week"    // 超过每周上限
	ConflictConsecutive    ConflictType = "consecutive"     // 违反连排规则
	ConflictPartial        ConflictType = "partial"         // 排在软冲突时段（警告）
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	ClassID  uuid.UUID    `json:"class_id,omitempty"`
	Date     string       `json:"date,omitempty"`
	Period   int          `json:"period,omitempty"`
	Message  string       `json:"message"`
}

// Result 验证结果
type Result struct {
	Valid     bool       `json:"valid"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Warnings  []Conflict `json:"warnings,omitempty"`
}

// ConflictDetector 课表冲突检测器，用于校验外部传入的课表
type ConflictDetector struct {
	checker *constraint.Checker
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(checker *constraint.Checker) *ConflictDetector {
	return &ConflictDetector{checker: checker}
}

// Validate 检测课表中的所有冲突
func (d *ConflictDetector) Validate(s *model.Schedule) *Result {
	result := &Result{Valid: true}

	d.detectDuplicates(s, result)
	d.detectSlotConflicts(s, result)
	d.detectLimitViolations(s, result)

	result.Valid = len(result.Conflicts) == 0
	return result
}

// detectDuplicates 检测课程重复与时段重复占用
func (d *ConflictDetector) detectDuplicates(s *model.Schedule, result *Result) {
	seenClasses := make(map[uuid.UUID]bool)
	seenSlots := make(map[model.SlotRef]uuid.UUID)

	for _, sc := range s.Classes {
		if seenClasses[sc.ClassID()] {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:     ConflictDuplicateClass,
				Severity: "error",
				ClassID:  sc.ClassID(),
				Message:  fmt.Sprintf("课程 %s 被重复排入", sc.Class.Name),
			})
		}
		seenClasses[sc.ClassID()] = true

		slot := sc.Slot()
		if other, occupied := seenSlots[slot]; occupied {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:     ConflictDoubleBooking,
				Severity: "error",
				ClassID:  sc.ClassID(),
				Date:     sc.Date,
				Period:   sc.Period,
				Message:  fmt.Sprintf("%s 第%d节 同时排入课程 %s 和 %s", sc.Date, sc.Period, other, sc.ClassID()),
			})
		}
		seenSlots[slot] = sc.ClassID()
	}
}

// detectSlotConflicts 检测硬冲突、禁排和软冲突时段上的排课
func (d *ConflictDetector) detectSlotConflicts(s *model.Schedule, result *Result) {
	for _, sc := range s.Classes {
		if sc.Class.HasTotalConflict(sc.Date, sc.Period) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:     ConflictTotal,
				Severity: "error",
				ClassID:  sc.ClassID(),
				Date:     sc.Date,
				Period:   sc.Period,
				Message:  fmt.Sprintf("课程 %s 排在硬冲突时段 %s 第%d节", sc.Class.Name, sc.Date, sc.Period),
			})
		}
		if d.checker.IsBlackout(sc.Date, sc.Period) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:     ConflictBlackout,
				Severity: "error",
				ClassID:  sc.ClassID(),
				Date:     sc.Date,
				Period:   sc.Period,
				Message:  fmt.Sprintf("课程 %s 排在禁排时段 %s 第%d节", sc.Class.Name, sc.Date, sc.Period),
			})
		}
		if n := sc.Class.CountPartialConflicts(sc.Date, sc.Period); n > 0 {
			result.Warnings = append(result.Warnings, Conflict{
				Type:     ConflictPartial,
				Severity: "warning",
				ClassID:  sc.ClassID(),
				Date:     sc.Date,
				Period:   sc.Period,
				Message:  fmt.Sprintf("课程 %s 排在软冲突时段 %s 第%d节 (冲突数 %d)", sc.Class.Name, sc.Date, sc.Period, n),
			})
		}
	}
}

// detectLimitViolations 检测每日、每周和连排限制
func (d *ConflictDetector) detectLimitViolations(s *model.Schedule, result *Result) {
	weeks := make(map[string]bool)

	for _, date := range s.UsedDates() {
		if d.checker.ViolatesMaxPerDay(s, date) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:     ConflictMaxPerDay,
				Severity: "error",
				Date:     date,
				Message:  fmt.Sprintf("%s 排课 %d 节，超过每日上限", date, s.CountOnDate(date)),
			})
		}
		weeks[model.WeekStart(date)] = true

		for _, sc := range s.ClassesOnDate(date) {
			if d.checker.ViolatesConsecutive(s, date, sc.Period) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:     ConflictConsecutive,
					Severity: "error",
					ClassID:  sc.ClassID(),
					Date:     date,
					Period:   sc.Period,
					Message:  fmt.Sprintf("%s 第%d节 所在连排违反连排规则", date, sc.Period),
				})
				break // 每天最多报告一次
			}
		}
	}

	for week := range weeks {
		if d.checker.ViolatesMaxPerWeek(s, week) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:     ConflictMaxPerWeek,
				Severity: "error",
				Date:     week,
				Message:  fmt.Sprintf("周 %s 排课 %d 节，超过每周上限", week, s.CountInWeek(week)),
			})
		}
	}
}
