// Package solver 提供初始课表构造
package solver

import (
	"context"
	"math/rand"

	"github.com/paike/paike/pkg/logger"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
	"github.com/paike/paike/pkg/scheduler/score"
)

// DefaultWindowDays 候选日期窗口长度
const DefaultWindowDays = 14

// acceptProbability 合法时段的接受概率
// 保留1%的拒绝率，使重复构造产生不同的初始解
const acceptProbability = 0.99

// GreedySolver 贪心初始解构造器
// 按输入顺序为每门课程在随机打乱的候选时段中寻找无冲突位置
type GreedySolver struct {
	checker    *constraint.Checker
	scorer     *score.Scorer
	rng        *rand.Rand
	logger     *logger.EngineLogger
	windowDays int
}

// NewGreedySolver 创建贪心构造器
// rng 由调用方注入，每次退火运行持有独立的随机源
func NewGreedySolver(checker *constraint.Checker, scorer *score.Scorer, rng *rand.Rand) *GreedySolver {
	return &GreedySolver{
		checker:    checker,
		scorer:     scorer,
		rng:        rng,
		logger:     logger.NewEngineLogger(),
		windowDays: DefaultWindowDays,
	}
}

// SetWindowDays 设置候选日期窗口长度
func (s *GreedySolver) SetWindowDays(days int) {
	if days > 0 {
		s.windowDays = days
	}
}

// WindowDays 返回候选日期窗口长度
func (s *GreedySolver) WindowDays() int {
	return s.windowDays
}

// CandidateDates 生成从起始日期开始的候选日期窗口
func (s *GreedySolver) CandidateDates(startDate string) []string {
	dates := make([]string, s.windowDays)
	for i := 0; i < s.windowDays; i++ {
		dates[i] = model.AddDays(startDate, i)
	}
	return dates
}

// Build 构造初始课表
// 无法排入的课程保持未排状态，通过 TotalLength < 1 反映，不作为错误
func (s *GreedySolver) Build(ctx context.Context, classes []*model.ClassItem, startDate string) (*model.Schedule, error) {
	schedule := model.NewSchedule(classes, startDate, s.checker.Constraints())

	for _, class := range classes {
		if ctx.Err() != nil {
			return schedule, ctx.Err()
		}
		if placed := s.PlaceClass(schedule, class, startDate); !placed {
			s.logger.ConstraintViolation("初始构造", "课程 "+class.Name+" 在窗口内无可用时段")
		}
	}

	s.scorer.Score(schedule)
	return schedule, nil
}

// PlaceClass 为单门课程寻找时段并排入
// 扫描打乱后的 (日期, 节次) 组合，以接受概率选取首个合法时段；
// 被随机拒绝的合法时段记为候补，扫描结束后回退使用
func (s *GreedySolver) PlaceClass(schedule *model.Schedule, class *model.ClassItem, startDate string) bool {
	dates := s.CandidateDates(startDate)
	s.rng.Shuffle(len(dates), func(i, j int) {
		dates[i], dates[j] = dates[j], dates[i]
	})

	periods := make([]int, s.checker.Constraints().MaxPeriodsPerDay)
	for i := range periods {
		periods[i] = i + 1
	}

	var fallback *model.SlotRef

	for _, date := range dates {
		s.rng.Shuffle(len(periods), func(i, j int) {
			periods[i], periods[j] = periods[j], periods[i]
		})
		for _, period := range periods {
			ok, _ := s.checker.CanPlace(schedule, class, date, period)
			if !ok {
				continue
			}
			if s.rng.Float64() < acceptProbability {
				schedule.AddClass(&model.ScheduledClass{Class: class, Date: date, Period: period})
				return true
			}
			if fallback == nil {
				fallback = &model.SlotRef{Date: date, Period: period}
			}
		}
	}

	if fallback != nil {
		schedule.AddClass(&model.ScheduledClass{Class: class, Date: fallback.Date, Period: fallback.Period})
		return true
	}
	return false
}
