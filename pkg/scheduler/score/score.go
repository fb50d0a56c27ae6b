// Package score 提供课表评分
package score

import (
	"sort"

	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
)

// Weights 评分分量权重
type Weights struct {
	TotalLength            float64 `json:"total_length"`
	GradeGroupCohesion     float64 `json:"grade_group_cohesion"`
	DistributionQuality    float64 `json:"distribution_quality"`
	GradeProgression       float64 `json:"grade_progression"`
	ConstraintViolations   float64 `json:"constraint_violations"`
	PartialConflictPenalty float64 `json:"partial_conflict_penalty"`
}

// DefaultWeights 返回默认权重
// 软冲突仅作为观测指标，默认不参与总分
func DefaultWeights() Weights {
	return Weights{
		TotalLength:            1.0,
		GradeGroupCohesion:     0.5,
		DistributionQuality:    0.3,
		GradeProgression:       0.4,
		ConstraintViolations:   -100.0,
		PartialConflictPenalty: 0,
	}
}

// Scorer 课表评分器
// 评分是纯函数：同一课表两次评分结果相同，随机性只存在于搜索过程
type Scorer struct {
	checker *constraint.Checker
	prefs   *model.SchedulePreferences
	weights Weights
}

// NewScorer 创建评分器
func NewScorer(checker *constraint.Checker, prefs *model.SchedulePreferences) *Scorer {
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}
	return &Scorer{
		checker: checker,
		prefs:   prefs,
		weights: DefaultWeights(),
	}
}

// SetWeights 覆盖默认权重
func (sc *Scorer) SetWeights(w Weights) {
	sc.weights = w
}

// Score 计算评分向量并写入课表缓存
func (sc *Scorer) Score(s *model.Schedule) *model.ScoreVector {
	v := &model.ScoreVector{
		TotalLength:            s.CompletionRate(),
		GradeGroupCohesion:     sc.gradeGroupCohesion(s),
		DistributionQuality:    sc.distributionQuality(s),
		GradeProgression:       sc.gradeProgression(s),
		ConstraintViolations:   sc.constraintViolations(s),
		PartialConflictPenalty: sc.partialConflictPenalty(s),
	}
	v.Aggregate = sc.Aggregate(v)
	s.Score = v
	return v
}

// Aggregate 按权重聚合为单一分值
// 偏好为 none 时年级排列分量不计入
func (sc *Scorer) Aggregate(v *model.ScoreVector) float64 {
	progressionWeight := sc.weights.GradeProgression
	if sc.prefs.GradeProgression == model.ProgressionNone {
		progressionWeight = 0
	}
	return sc.weights.TotalLength*v.TotalLength +
		sc.weights.GradeGroupCohesion*v.GradeGroupCohesion +
		sc.weights.DistributionQuality*v.DistributionQuality +
		progressionWeight*v.GradeProgression +
		sc.weights.ConstraintViolations*float64(v.ConstraintViolations) +
		sc.weights.PartialConflictPenalty*v.PartialConflictPenalty
}

// gradeGroupCohesion 年级组聚合度
// 按日计算：当日只出现一个年级组得1.0，两个得0.5，组数越多越低，最后对各日取平均
func (sc *Scorer) gradeGroupCohesion(s *model.Schedule) float64 {
	dates := s.UsedDates()
	if len(dates) == 0 {
		return 0
	}

	total := 0.0
	for _, date := range dates {
		groups := make(map[string]bool)
		for _, scl := range s.ClassesOnDate(date) {
			if group := sc.prefs.GroupOf(scl.Class); group != "" {
				groups[group] = true
			}
		}
		if len(groups) <= 1 {
			total += 1.0
		} else {
			total += 1.0 / float64(len(groups))
		}
	}
	return total / float64(len(dates))
}

// distributionQuality 分布均匀度
// 各日排课数方差为0时得1.0，方差越大得分越低
func (sc *Scorer) distributionQuality(s *model.Schedule) float64 {
	dates := s.UsedDates()
	if len(dates) == 0 {
		return 0
	}

	counts := make([]float64, len(dates))
	sum := 0.0
	for i, date := range dates {
		counts[i] = float64(s.CountOnDate(date))
		sum += counts[i]
	}
	mean := sum / float64(len(counts))

	variance := 0.0
	for _, c := range counts {
		diff := c - mean
		variance += diff * diff
	}
	variance /= float64(len(counts))

	return 1.0 / (1.0 + variance)
}

// gradeProgression 年级排列得分
// 按日将课程按节次排序，统计相邻课程满足排列方向的比例；偏好为 none 时为0
func (sc *Scorer) gradeProgression(s *model.Schedule) float64 {
	if sc.prefs.GradeProgression == model.ProgressionNone {
		return 0
	}
	dates := s.UsedDates()
	if len(dates) == 0 {
		return 0
	}

	total := 0.0
	for _, date := range dates {
		classes := s.ClassesOnDate(date)
		if len(classes) < 2 {
			total += 1.0
			continue
		}
		sort.Slice(classes, func(i, j int) bool {
			return classes[i].Period < classes[j].Period
		})

		satisfied := 0
		pairs := len(classes) - 1
		for i := 0; i < pairs; i++ {
			a := classes[i].Class.GradeLevel
			b := classes[i+1].Class.GradeLevel
			switch sc.prefs.GradeProgression {
			case model.ProgressionLowToHigh:
				if a <= b {
					satisfied++
				}
			case model.ProgressionHighToLow:
				if a >= b {
					satisfied++
				}
			}
		}
		total += float64(satisfied) / float64(pairs)
	}
	return total / float64(len(dates))
}

// constraintViolations 硬约束违反计数，正常搜索下应恒为0
func (sc *Scorer) constraintViolations(s *model.Schedule) int {
	violations := 0

	// 硬冲突和禁排时段上的排课
	for _, scl := range s.Classes {
		if scl.Class.HasTotalConflict(scl.Date, scl.Period) {
			violations++
		}
		if sc.checker.IsBlackout(scl.Date, scl.Period) {
			violations++
		}
	}

	cs := sc.checker.Constraints()
	weeks := make(map[string]bool)

	for _, date := range s.UsedDates() {
		if sc.checker.ViolatesMaxPerDay(s, date) {
			violations++
		}
		weeks[model.WeekStart(date)] = true

		// 每段违反连排规则的连续占用段计一次，与约束检查器同口径
		occupied := s.OccupiedPeriods(date)
		period := 1
		for period <= cs.MaxPeriodsPerDay {
			if !occupied[period] {
				period++
				continue
			}
			end := period
			for end < cs.MaxPeriodsPerDay && occupied[end+1] {
				end++
			}
			if sc.checker.ViolatesConsecutive(s, date, period) {
				violations++
			}
			period = end + 1
		}
	}

	for week := range weeks {
		if sc.checker.ViolatesMaxPerWeek(s, week) {
			violations++
		}
	}

	return violations
}

// partialConflictPenalty 软冲突占比
// 已排课程落在自身软冲突时段的计数，按已排数归一化并截断到 [0,1]
func (sc *Scorer) partialConflictPenalty(s *model.Schedule) float64 {
	if s.ScheduledCount() == 0 {
		return 0
	}
	count := 0
	for _, scl := range s.Classes {
		count += scl.Class.CountPartialConflicts(scl.Date, scl.Period)
	}
	penalty := float64(count) / float64(s.ScheduledCount())
	if penalty > 1.0 {
		penalty = 1.0
	}
	return penalty
}
