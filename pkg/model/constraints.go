// Package model 定义排课引擎的核心数据模型
package model

import (
	"fmt"

	"github.com/paike/paike/pkg/errors"
)

// GradeProgression 年级排列偏好
type GradeProgression string

const (
	ProgressionNone      GradeProgression = "none"        // 不要求
	ProgressionLowToHigh GradeProgression = "low-to-high" // 低年级在前
	ProgressionHighToLow GradeProgression = "high-to-low" // 高年级在前
)

// ConsecutiveRule 连排规则
type ConsecutiveRule struct {
	Maximum      int `json:"maximum"`       // 最大连排节数 1-2
	RequireBreak int `json:"require_break"` // 连排后需要的空闲节数 1-2
}

// ScheduleConstraints 排课约束配置（构造后不可变）
type ScheduleConstraints struct {
	MaxPeriodsPerDay   int             `json:"max_periods_per_day"`  // 每日节次数 1-8
	MaxPeriodsPerWeek  int             `json:"max_periods_per_week"` // 每周最大课时
	MaxClassesPerDay   int             `json:"max_classes_per_day"`  // 每日最大排课数
	ConsecutivePeriods ConsecutiveRule `json:"consecutive_periods"`
	BlackoutPeriods    []SlotRef       `json:"blackout_periods,omitempty"` // 全局禁排时段
}

// DefaultConstraints 返回默认排课约束
func DefaultConstraints() *ScheduleConstraints {
	return &ScheduleConstraints{
		MaxPeriodsPerDay:  8,
		MaxPeriodsPerWeek: 40,
		MaxClassesPerDay:  8,
		ConsecutivePeriods: ConsecutiveRule{
			Maximum:      2,
			RequireBreak: 1,
		},
	}
}

// Validate 校验约束取值，构造时调用一次，失败即终止
func (c *ScheduleConstraints) Validate() error {
	if c.MaxPeriodsPerDay < 1 || c.MaxPeriodsPerDay > 8 {
		return errors.InvalidConstraint("max_periods_per_day",
			fmt.Sprintf("取值 %d 不在 [1,8] 范围内", c.MaxPeriodsPerDay))
	}
	if c.MaxPeriodsPerWeek < 1 {
		return errors.InvalidConstraint("max_periods_per_week",
			fmt.Sprintf("取值 %d 必须为正数", c.MaxPeriodsPerWeek))
	}
	if c.MaxPeriodsPerWeek > c.MaxPeriodsPerDay*5 {
		return errors.InvalidConstraint("max_periods_per_week",
			fmt.Sprintf("取值 %d 超过每日节次数×5 (%d)", c.MaxPeriodsPerWeek, c.MaxPeriodsPerDay*5))
	}
	if c.MaxPeriodsPerWeek > 40 {
		return errors.InvalidConstraint("max_periods_per_week",
			fmt.Sprintf("取值 %d 超过上限 40", c.MaxPeriodsPerWeek))
	}
	if c.MaxClassesPerDay < 1 {
		return errors.InvalidConstraint("max_classes_per_day",
			fmt.Sprintf("取值 %d 必须为正数", c.MaxClassesPerDay))
	}
	if c.ConsecutivePeriods.Maximum < 1 || c.ConsecutivePeriods.Maximum > 2 {
		return errors.InvalidConstraint("consecutive_periods.maximum",
			fmt.Sprintf("取值 %d 不在 {1,2} 范围内", c.ConsecutivePeriods.Maximum))
	}
	if c.ConsecutivePeriods.RequireBreak < 1 || c.ConsecutivePeriods.RequireBreak > 2 {
		return errors.InvalidConstraint("consecutive_periods.require_break",
			fmt.Sprintf("取值 %d 不在 {1,2} 范围内", c.ConsecutivePeriods.RequireBreak))
	}
	for _, s := range c.BlackoutPeriods {
		if s.Period < 1 || s.Period > c.MaxPeriodsPerDay {
			return errors.InvalidConstraint("blackout_periods",
				fmt.Sprintf("时段 %s 第%d节 超出节次范围", s.Date, s.Period))
		}
	}
	return nil
}

// SchedulePreferences 排课偏好配置
type SchedulePreferences struct {
	GradeGroups          map[string][]int `json:"grade_groups,omitempty"` // 年级组划分
	PreferSameGradeInDay bool             `json:"prefer_same_grade_in_day"`
	GradeProgression     GradeProgression `json:"grade_progression"`
}

// DefaultPreferences 返回默认排课偏好
func DefaultPreferences() *SchedulePreferences {
	return &SchedulePreferences{
		GradeGroups:          make(map[string][]int),
		PreferSameGradeInDay: true,
		GradeProgression:     ProgressionNone,
	}
}

// GroupOf 按年级查找所属年级组，未配置时返回课程自带的组标签
func (p *SchedulePreferences) GroupOf(class *ClassItem) string {
	if class.GradeGroup != "" {
		return class.GradeGroup
	}
	for group, levels := range p.GradeGroups {
		for _, level := range levels {
			if level == class.GradeLevel {
				return group
			}
		}
	}
	return ""
}
