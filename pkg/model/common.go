// Package model 定义排课引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SlotRef 时段引用（某日期的某节次）
type SlotRef struct {
	Date   string `json:"date"`   // YYYY-MM-DD
	Period int    `json:"period"` // 节次，从1开始
}

// DateRange 日期范围
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// ParseDate 解析日期字符串
func ParseDate(date string) (time.Time, error) {
	return time.Parse("2006-01-02", date)
}

// FormatDate 格式化日期
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// AddDays 日期加减天数
func AddDays(date string, days int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return FormatDate(t.AddDate(0, 0, days))
}

// WeekStart 获取日期所在周的开始日期（周日）
func WeekStart(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	weekday := int(t.Weekday())
	return FormatDate(t.AddDate(0, 0, -weekday))
}

// WeekEnd 获取周结束日期（周六）
func WeekEnd(weekStart string) string {
	return AddDays(weekStart, 6)
}

// DaysBetween 计算两个日期之间的天数（含两端）
func DaysBetween(startDate, endDate string) int {
	start, err1 := ParseDate(startDate)
	end, err2 := ParseDate(endDate)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
