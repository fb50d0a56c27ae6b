// Package stats 提供课表统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/paike/paike/pkg/model"
)

// DayLoad 单日负载
type DayLoad struct {
	Date        string   `json:"date"`
	Count       int      `json:"count"`
	GradeGroups []string `json:"grade_groups,omitempty"`
}

// DistributionMetrics 分布指标
type DistributionMetrics struct {
	Days          []DayLoad `json:"days"`
	MeanPerDay    float64   `json:"mean_per_day"`     // 日均排课数
	Variance      float64   `json:"variance"`         // 各日排课数方差
	StdDev        float64   `json:"std_dev"`          // 标准差
	LoadGini      float64   `json:"load_gini"`        // 负载基尼系数 (0=完全均匀)
	MaxPerDay     int       `json:"max_per_day"`      // 单日最大排课数
	MinPerDay     int       `json:"min_per_day"`      // 单日最小排课数
	EvennessScore float64   `json:"evenness_score"`   // 均匀度评分 0-100
	GroupMixScore float64   `json:"group_mix_score"`  // 年级组聚合评分 0-100
	ScheduledRate float64   `json:"scheduled_rate"`   // 排入率 0-1
}

// DistributionAnalyzer 分布分析器
type DistributionAnalyzer struct {
	prefs *model.SchedulePreferences
}

// NewDistributionAnalyzer 创建分布分析器
func NewDistributionAnalyzer(prefs *model.SchedulePreferences) *DistributionAnalyzer {
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}
	return &DistributionAnalyzer{prefs: prefs}
}

// Analyze 分析课表的负载分布
func (a *DistributionAnalyzer) Analyze(s *model.Schedule) *DistributionMetrics {
	metrics := &DistributionMetrics{
		ScheduledRate: s.CompletionRate(),
	}
	dates := s.UsedDates()
	if len(dates) == 0 {
		metrics.EvennessScore = 100
		metrics.GroupMixScore = 100
		return metrics
	}
	sort.Strings(dates)

	counts := make([]float64, len(dates))
	mixTotal := 0.0
	for i, date := range dates {
		classes := s.ClassesOnDate(date)
		counts[i] = float64(len(classes))

		groupSet := make(map[string]bool)
		for _, sc := range classes {
			if g := a.prefs.GroupOf(sc.Class); g != "" {
				groupSet[g] = true
			}
		}
		groups := make([]string, 0, len(groupSet))
		for g := range groupSet {
			groups = append(groups, g)
		}
		sort.Strings(groups)

		if len(groupSet) <= 1 {
			mixTotal += 1.0
		} else {
			mixTotal += 1.0 / float64(len(groupSet))
		}

		metrics.Days = append(metrics.Days, DayLoad{
			Date:        date,
			Count:       len(classes),
			GradeGroups: groups,
		})
	}

	metrics.MeanPerDay = mean(counts)
	metrics.Variance = variance(counts, metrics.MeanPerDay)
	metrics.StdDev = math.Sqrt(metrics.Variance)
	metrics.LoadGini = gini(counts)

	maxCount, minCount := counts[0], counts[0]
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
		if c < minCount {
			minCount = c
		}
	}
	metrics.MaxPerDay = int(maxCount)
	metrics.MinPerDay = int(minCount)

	metrics.EvennessScore = 100.0 / (1.0 + metrics.Variance)
	metrics.GroupMixScore = 100.0 * mixTotal / float64(len(dates))

	return metrics
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance 计算方差
func variance(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		diff := v - avg
		sum += diff * diff
	}
	return sum / float64(len(values))
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var cumSum, totalSum float64
	for i, v := range sorted {
		cumSum += float64(i+1) * v
		totalSum += v
	}
	if totalSum == 0 {
		return 0
	}

	return (2.0*cumSum)/(float64(n)*totalSum) - float64(n+1)/float64(n)
}
