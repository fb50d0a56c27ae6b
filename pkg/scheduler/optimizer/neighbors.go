// Package optimizer 提供模拟退火搜索
package optimizer

import (
	"math/rand"
	"sort"

	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveRelocate       MoveType = iota // 重新安置一门已排课程
	MoveAddUnscheduled                 // 排入一门未排课程
	MoveShake                          // 移除一批课程以跳出局部最优
	MoveNone                           // 无可行移动，课表不变
)

// relocateTopN 重新安置时在惩罚最低的前N个候选中随机选取
const relocateTopN = 3

// slotCandidate 候选目标时段
type slotCandidate struct {
	date    string
	period  int
	partial int
}

// NeighborhoodGenerator 邻域生成器
// 每次移动都在克隆出的课表上进行，接受判定前不修改当前课表
type NeighborhoodGenerator struct {
	checker    *constraint.Checker
	rng        *rand.Rand
	windowDays int
}

// NewNeighborhoodGenerator 创建邻域生成器
func NewNeighborhoodGenerator(checker *constraint.Checker, rng *rand.Rand) *NeighborhoodGenerator {
	return &NeighborhoodGenerator{
		checker:    checker,
		rng:        rng,
		windowDays: 14,
	}
}

// SetWindowDays 设置候选日期窗口长度
func (n *NeighborhoodGenerator) SetWindowDays(days int) {
	if days > 0 {
		n.windowDays = days
	}
}

// GenerateNeighbor 生成邻域课表
// 停滞时优先摇动；存在未排课程时以随完成率下降而升高的概率尝试补排；否则重新安置
func (n *NeighborhoodGenerator) GenerateNeighbor(current *model.Schedule, stalled bool) (*model.Schedule, MoveType) {
	if stalled && current.ScheduledCount() >= 2 {
		return n.shake(current), MoveShake
	}

	if unscheduled := current.UnscheduledClasses(); len(unscheduled) > 0 {
		addProb := 0.6 + (1.0-current.CompletionRate())*0.5
		if addProb > 0.9 {
			addProb = 0.9
		}
		if n.rng.Float64() < addProb {
			return n.addUnscheduled(current, unscheduled)
		}
	}

	return n.relocate(current)
}

// relocate 重新安置移动
// 随机选取一门已排课程，在合法目标时段中按软冲突升序排列，于前几名中随机选取
func (n *NeighborhoodGenerator) relocate(current *model.Schedule) (*model.Schedule, MoveType) {
	if current.ScheduledCount() == 0 {
		return current.Clone(), MoveNone
	}

	neighbor := current.Clone()
	picked := neighbor.Classes[n.rng.Intn(len(neighbor.Classes))]
	class := picked.Class
	oldDate, oldPeriod := picked.Date, picked.Period

	// 移除后再评估目标合法性，避免课程自身占用影响上限判断
	neighbor.RemoveClass(class.ID)
	candidates := n.legalSlots(neighbor, class, oldDate, oldPeriod)

	if len(candidates) == 0 {
		neighbor.AddClass(&model.ScheduledClass{Class: class, Date: oldDate, Period: oldPeriod})
		return neighbor, MoveNone
	}

	// 先打乱再稳定排序，同分候选保持随机顺序
	n.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].partial < candidates[j].partial
	})

	topN := relocateTopN
	if len(candidates) < topN {
		topN = len(candidates)
	}
	chosen := candidates[n.rng.Intn(topN)]
	neighbor.AddClass(&model.ScheduledClass{Class: class, Date: chosen.date, Period: chosen.period})
	return neighbor, MoveRelocate
}

// addUnscheduled 补排移动
func (n *NeighborhoodGenerator) addUnscheduled(current *model.Schedule, unscheduled []*model.ClassItem) (*model.Schedule, MoveType) {
	neighbor := current.Clone()
	class := unscheduled[n.rng.Intn(len(unscheduled))]

	candidates := n.legalSlots(neighbor, class, "", 0)
	if len(candidates) == 0 {
		return neighbor, MoveNone
	}

	n.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].partial < candidates[j].partial
	})

	topN := relocateTopN
	if len(candidates) < topN {
		topN = len(candidates)
	}
	chosen := candidates[n.rng.Intn(topN)]
	neighbor.AddClass(&model.ScheduledClass{Class: class, Date: chosen.date, Period: chosen.period})
	return neighbor, MoveAddUnscheduled
}

// shake 摇动移动
// 移除 2%-20% 的已排课程（按规模缩放，至少2门），让后续迭代重新安置
func (n *NeighborhoodGenerator) shake(current *model.Schedule) *model.Schedule {
	neighbor := current.Clone()

	fraction := 0.02 + n.rng.Float64()*0.18
	count := int(fraction * float64(neighbor.ScheduledCount()))
	if count < 2 {
		count = 2
	}
	if count > neighbor.ScheduledCount() {
		count = neighbor.ScheduledCount()
	}

	for i := 0; i < count && neighbor.ScheduledCount() > 0; i++ {
		victim := neighbor.Classes[n.rng.Intn(len(neighbor.Classes))]
		neighbor.RemoveClass(victim.ClassID())
	}
	return neighbor
}

// legalSlots 枚举课程的合法目标时段
// excludeDate/excludePeriod 用于排除课程当前所在时段
func (n *NeighborhoodGenerator) legalSlots(s *model.Schedule, class *model.ClassItem, excludeDate string, excludePeriod int) []slotCandidate {
	var candidates []slotCandidate
	maxPeriods := n.checker.Constraints().MaxPeriodsPerDay

	for day := 0; day < n.windowDays; day++ {
		date := model.AddDays(s.StartDate, day)
		for period := 1; period <= maxPeriods; period++ {
			if date == excludeDate && period == excludePeriod {
				continue
			}
			if ok, _ := n.checker.CanPlace(s, class, date, period); !ok {
				continue
			}
			candidates = append(candidates, slotCandidate{
				date:    date,
				period:  period,
				partial: class.CountPartialConflicts(date, period),
			})
		}
	}
	return candidates
}
