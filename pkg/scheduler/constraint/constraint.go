// Package constraint 提供冲突模型和约束检查
package constraint

import (
	"fmt"

	"github.com/paike/paike/pkg/model"
)

// ConflictCheck 单个时段的冲突检查结果
type ConflictCheck struct {
	HasConflict          bool `json:"has_conflict"`           // 是否存在硬冲突
	PartialConflictCount int  `json:"partial_conflict_count"` // 软冲突数（硬冲突时也会计算）
}

// Checker 约束检查器
// 持有不可变的约束配置和全局禁排时段，可被多个搜索并发只读使用
type Checker struct {
	constraints *model.ScheduleConstraints
	blackouts   map[model.SlotRef]bool
}

// NewChecker 创建约束检查器
// 构造时校验约束取值，失败即返回错误，不进入搜索
func NewChecker(constraints *model.ScheduleConstraints, extraBlackouts []model.SlotRef) (*Checker, error) {
	if constraints == nil {
		constraints = model.DefaultConstraints()
	}
	if err := constraints.Validate(); err != nil {
		return nil, err
	}

	blackouts := make(map[model.SlotRef]bool, len(constraints.BlackoutPeriods)+len(extraBlackouts))
	for _, s := range constraints.BlackoutPeriods {
		blackouts[s] = true
	}
	for _, s := range extraBlackouts {
		blackouts[s] = true
	}

	return &Checker{
		constraints: constraints,
		blackouts:   blackouts,
	}, nil
}

// Constraints 返回约束配置
func (c *Checker) Constraints() *model.ScheduleConstraints {
	return c.constraints
}

// HasTotalConflict 检查课程在某时段是否存在硬冲突
func (c *Checker) HasTotalConflict(class *model.ClassItem, date string, period int) bool {
	return class.HasTotalConflict(date, period)
}

// CountPartialConflicts 统计课程在某时段的软冲突数
func (c *Checker) CountPartialConflicts(class *model.ClassItem, date string, period int) int {
	return class.CountPartialConflicts(date, period)
}

// CheckClassConflicts 组合冲突检查
// 软冲突数不论是否存在硬冲突都会计算
func (c *Checker) CheckClassConflicts(date string, period int, class *model.ClassItem) ConflictCheck {
	return ConflictCheck{
		HasConflict:          class.HasTotalConflict(date, period),
		PartialConflictCount: class.CountPartialConflicts(date, period),
	}
}

// IsBlackout 检查某时段是否为全局禁排
func (c *Checker) IsBlackout(date string, period int) bool {
	return c.blackouts[model.SlotRef{Date: date, Period: period}]
}

// ViolatesMaxPerDay 检查某日期排课数是否超过每日上限
func (c *Checker) ViolatesMaxPerDay(s *model.Schedule, date string) bool {
	return s.CountOnDate(date) > c.constraints.MaxClassesPerDay
}

// WouldExceedMaxPerDay 检查再排入一节是否会超过每日上限
func (c *Checker) WouldExceedMaxPerDay(s *model.Schedule, date string) bool {
	return s.CountOnDate(date)+1 > c.constraints.MaxClassesPerDay
}

// ViolatesMaxPerWeek 检查某周排课数是否超过每周上限
func (c *Checker) ViolatesMaxPerWeek(s *model.Schedule, weekStart string) bool {
	return s.CountInWeek(weekStart) > c.constraints.MaxPeriodsPerWeek
}

// WouldExceedMaxPerWeek 检查在某日期再排入一节是否会超过每周上限
func (c *Checker) WouldExceedMaxPerWeek(s *model.Schedule, date string) bool {
	return s.CountInWeek(model.WeekStart(date))+1 > c.constraints.MaxPeriodsPerWeek
}

// ViolatesConsecutive 检查包含某节次的连排是否违反连排规则
// 计算包含该节次的最长连续占用段，与允许的最大连排比较；
// 达到最大连排时，要求其后至少留出 RequireBreak 个空闲节次
func (c *Checker) ViolatesConsecutive(s *model.Schedule, date string, period int) bool {
	occupied := s.OccupiedPeriods(date)
	if !occupied[period] {
		return false
	}
	return c.violatesConsecutiveIn(occupied, period)
}

// WouldViolateConsecutive 检查排入某节次后是否会违反连排规则
func (c *Checker) WouldViolateConsecutive(s *model.Schedule, date string, period int) bool {
	occupied := s.OccupiedPeriods(date)
	occupied[period] = true
	return c.violatesConsecutiveIn(occupied, period)
}

// violatesConsecutiveIn 在给定的占用集合上检查连排规则
func (c *Checker) violatesConsecutiveIn(occupied map[int]bool, period int) bool {
	rule := c.constraints.ConsecutivePeriods

	// 包含该节次的连续占用段
	start := period
	for start > 1 && occupied[start-1] {
		start--
	}
	end := period
	for end < c.constraints.MaxPeriodsPerDay && occupied[end+1] {
		end++
	}
	runLength := end - start + 1

	if runLength > rule.Maximum {
		return true
	}

	// 达到最大连排时，其后必须留出空闲节次
	if runLength == rule.Maximum {
		for offset := 1; offset <= rule.RequireBreak; offset++ {
			next := end + offset
			if next > c.constraints.MaxPeriodsPerDay {
				break // 已到当日末尾，无需空闲
			}
			if occupied[next] {
				return true
			}
		}
	}

	return false
}

// CanPlace 综合检查课程能否排入某时段
// 依次检查：时段占用、禁排、硬冲突、每日上限、每周上限、连排规则
func (c *Checker) CanPlace(s *model.Schedule, class *model.ClassItem, date string, period int) (bool, string) {
	if period < 1 || period > c.constraints.MaxPeriodsPerDay {
		return false, fmt.Sprintf("节次 %d 超出范围", period)
	}
	if s.IsSlotOccupied(date, period) {
		return false, "时段已被占用"
	}
	if c.IsBlackout(date, period) {
		return false, "全局禁排时段"
	}
	if class.HasTotalConflict(date, period) {
		return false, "课程硬冲突"
	}
	if c.WouldExceedMaxPerDay(s, date) {
		return false, "超过每日排课上限"
	}
	if c.WouldExceedMaxPerWeek(s, date) {
		return false, "超过每周排课上限"
	}
	if c.WouldViolateConsecutive(s, date, period) {
		return false, "违反连排规则"
	}
	return true, ""
}
