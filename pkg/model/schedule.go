// Package model 定义排课引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// ScoreVector 课表评分向量
type ScoreVector struct {
	TotalLength            float64 `json:"total_length"`             // 排入率 0-1
	GradeGroupCohesion     float64 `json:"grade_group_cohesion"`     // 年级组聚合度 0-1
	DistributionQuality    float64 `json:"distribution_quality"`     // 分布均匀度 0-1
	GradeProgression       float64 `json:"grade_progression"`        // 年级排列得分 0-1
	ConstraintViolations   int     `json:"constraint_violations"`    // 硬约束违反数
	PartialConflictPenalty float64 `json:"partial_conflict_penalty"` // 软冲突占比 0-1
	Aggregate              float64 `json:"aggregate"`                // 加权总分
}

// Clone 拷贝评分向量
func (v *ScoreVector) Clone() *ScoreVector {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Schedule 课表（搜索状态）
// Catalogue 和 Constraints 为只读共享数据，Clone 时不复制
type Schedule struct {
	ID          uuid.UUID            `json:"id"`
	StartDate   string               `json:"start_date"`
	EndDate     string               `json:"end_date"`
	Classes     []*ScheduledClass    `json:"classes"`
	Catalogue   []*ClassItem         `json:"-"`
	Constraints *ScheduleConstraints `json:"constraints"`
	Score       *ScoreVector         `json:"score,omitempty"`

	scheduled map[uuid.UUID]*ScheduledClass
}

// NewSchedule 创建空课表
func NewSchedule(catalogue []*ClassItem, startDate string, constraints *ScheduleConstraints) *Schedule {
	return &Schedule{
		ID:          uuid.New(),
		StartDate:   startDate,
		EndDate:     startDate,
		Classes:     make([]*ScheduledClass, 0, len(catalogue)),
		Catalogue:   catalogue,
		Constraints: constraints,
		scheduled:   make(map[uuid.UUID]*ScheduledClass, len(catalogue)),
	}
}

// AddClass 排入课程
// 课程已在课表中时静默忽略（由调用方负责检查）
func (s *Schedule) AddClass(sc *ScheduledClass) {
	if _, exists := s.scheduled[sc.ClassID()]; exists {
		return
	}
	s.Classes = append(s.Classes, sc)
	s.scheduled[sc.ClassID()] = sc
	if sc.Date > s.EndDate {
		s.EndDate = sc.Date
	}
}

// RemoveClass 移出课程，不存在时为空操作
func (s *Schedule) RemoveClass(classID uuid.UUID) {
	removed, exists := s.scheduled[classID]
	if !exists {
		return
	}
	for i, sc := range s.Classes {
		if sc.ClassID() == classID {
			s.Classes = append(s.Classes[:i], s.Classes[i+1:]...)
			break
		}
	}
	delete(s.scheduled, classID)
	if removed.Date == s.EndDate {
		s.refreshEndDate()
	}
}

// refreshEndDate 重算最晚排课日期，无排课时回落到开始日期
func (s *Schedule) refreshEndDate() {
	end := s.StartDate
	for _, sc := range s.Classes {
		if sc.Date > end {
			end = sc.Date
		}
	}
	s.EndDate = end
}

// MoveClass 将课程移动到新时段，等价于移出后重新排入
func (s *Schedule) MoveClass(classID uuid.UUID, newDate string, newPeriod int) {
	existing, ok := s.scheduled[classID]
	if !ok {
		return
	}
	class := existing.Class
	s.RemoveClass(classID)
	s.AddClass(&ScheduledClass{Class: class, Date: newDate, Period: newPeriod})
}

// Clone 深拷贝课表状态
// 课程目录和约束配置为只读引用，直接共享
func (s *Schedule) Clone() *Schedule {
	clone := &Schedule{
		ID:          s.ID,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		Classes:     make([]*ScheduledClass, len(s.Classes)),
		Catalogue:   s.Catalogue,
		Constraints: s.Constraints,
		Score:       s.Score.Clone(),
		scheduled:   make(map[uuid.UUID]*ScheduledClass, len(s.Classes)),
	}
	for i, sc := range s.Classes {
		copied := *sc
		clone.Classes[i] = &copied
		clone.scheduled[copied.ClassID()] = &copied
	}
	return clone
}

// GetScheduled 按课程ID查找排入记录
func (s *Schedule) GetScheduled(classID uuid.UUID) *ScheduledClass {
	return s.scheduled[classID]
}

// IsScheduled 检查课程是否已排入
func (s *Schedule) IsScheduled(classID uuid.UUID) bool {
	_, ok := s.scheduled[classID]
	return ok
}

// ClassAt 查找某时段排入的课程，空时段返回nil
func (s *Schedule) ClassAt(date string, period int) *ScheduledClass {
	for _, sc := range s.Classes {
		if sc.Date == date && sc.Period == period {
			return sc
		}
	}
	return nil
}

// IsSlotOccupied 检查某时段是否已被占用
func (s *Schedule) IsSlotOccupied(date string, period int) bool {
	return s.ClassAt(date, period) != nil
}

// ClassesOnDate 获取某日期的所有排课
func (s *Schedule) ClassesOnDate(date string) []*ScheduledClass {
	var result []*ScheduledClass
	for _, sc := range s.Classes {
		if sc.Date == date {
			result = append(result, sc)
		}
	}
	return result
}

// CountOnDate 统计某日期的排课数
func (s *Schedule) CountOnDate(date string) int {
	count := 0
	for _, sc := range s.Classes {
		if sc.Date == date {
			count++
		}
	}
	return count
}

// CountInWeek 统计某周（周日起始）的排课数
func (s *Schedule) CountInWeek(weekStart string) int {
	weekEnd := WeekEnd(weekStart)
	count := 0
	for _, sc := range s.Classes {
		if sc.Date >= weekStart && sc.Date <= weekEnd {
			count++
		}
	}
	return count
}

// OccupiedPeriods 获取某日期已占用的节次集合
func (s *Schedule) OccupiedPeriods(date string) map[int]bool {
	periods := make(map[int]bool)
	for _, sc := range s.Classes {
		if sc.Date == date {
			periods[sc.Period] = true
		}
	}
	return periods
}

// UnscheduledClasses 获取未排入的课程（目录与已排集合的差集）
func (s *Schedule) UnscheduledClasses() []*ClassItem {
	var result []*ClassItem
	for _, c := range s.Catalogue {
		if !s.IsScheduled(c.ID) {
			result = append(result, c)
		}
	}
	return result
}

// ScheduledCount 返回已排课程数
func (s *Schedule) ScheduledCount() int {
	return len(s.Classes)
}

// TotalCount 返回课程总数
func (s *Schedule) TotalCount() int {
	return len(s.Catalogue)
}

// CompletionRate 返回排入率
func (s *Schedule) CompletionRate() float64 {
	if len(s.Catalogue) == 0 {
		return 1.0
	}
	return float64(len(s.Classes)) / float64(len(s.Catalogue))
}

// UsedDates 返回有排课的日期列表（无序）
func (s *Schedule) UsedDates() []string {
	seen := make(map[string]bool)
	var dates []string
	for _, sc := range s.Classes {
		if !seen[sc.Date] {
			seen[sc.Date] = true
			dates = append(dates, sc.Date)
		}
	}
	return dates
}
