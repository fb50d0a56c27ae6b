// Package scheduler 提供排课引擎入口
// 引擎是 (课程, 约束, 偏好, 禁排) -> 课表 的纯计算，除内部随机源外无环境依赖
package scheduler

import (
	"context"
	"time"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/logger"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
	"github.com/paike/paike/pkg/scheduler/optimizer"
	"github.com/paike/paike/pkg/scheduler/score"
)

// Options 引擎选项
type Options struct {
	WorkerCount int                     `json:"worker_count,omitempty"` // 并行运行数，上限8
	Seed        int64                   `json:"seed,omitempty"`         // 随机种子，0表示按时间取
	WindowDays  int                     `json:"window_days,omitempty"`  // 候选日期窗口
	Anneal      *optimizer.AnnealConfig `json:"anneal,omitempty"`       // 退火参数覆盖
	Weights     *score.Weights          `json:"weights,omitempty"`      // 评分权重覆盖
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		WorkerCount: 4,
	}
}

// Engine 排课引擎
// 构造时校验约束配置并立即失败，搜索开始前不做任何计算
type Engine struct {
	checker *constraint.Checker
	scorer  *score.Scorer
	prefs   *model.SchedulePreferences
	opts    *Options
	logger  *logger.EngineLogger
}

// NewEngine 创建排课引擎
func NewEngine(constraints *model.ScheduleConstraints, prefs *model.SchedulePreferences, blackouts []model.SlotRef, opts *Options) (*Engine, error) {
	checker, err := constraint.NewChecker(constraints, blackouts)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	scorer := score.NewScorer(checker, prefs)
	if opts.Weights != nil {
		scorer.SetWeights(*opts.Weights)
	}

	return &Engine{
		checker: checker,
		scorer:  scorer,
		prefs:   prefs,
		opts:    opts,
		logger:  logger.NewEngineLogger(),
	}, nil
}

// Generate 生成课表
// 个别课程排不进窗口不是错误，通过 TotalLength < 1 反映；
// 所有运行都未排入任何课程时返回 NO_FEASIBLE_SOLUTION
func (e *Engine) Generate(ctx context.Context, classes []*model.ClassItem, startDate string) (*model.Schedule, error) {
	if len(classes) == 0 {
		return nil, errors.InvalidInput("classes", "课程列表为空")
	}
	if _, err := model.ParseDate(startDate); err != nil {
		return nil, errors.InvalidInput("start_date", "日期格式应为 YYYY-MM-DD")
	}

	// 同一时段同时是硬冲突和软冲突时，硬冲突优先
	for _, c := range classes {
		c.NormalizeConflicts()
	}

	annealConfig := optimizer.DefaultAnnealConfig()
	if e.opts.Anneal != nil {
		annealConfig = *e.opts.Anneal
	}

	parallel := optimizer.NewParallelScheduler(annealConfig, e.opts.WorkerCount, e.checker, e.scorer)
	if e.opts.WindowDays > 0 {
		parallel.SetWindowDays(e.opts.WindowDays)
	}

	start := time.Now()
	e.logger.StartGenerate("", len(classes), e.opts.WorkerCount)

	best, err := parallel.Run(ctx, classes, startDate, e.opts.Seed)
	if err != nil {
		return nil, err
	}

	e.logger.GenerateComplete(best.ID.String(), time.Since(start),
		best.Score.Aggregate, best.ScheduledCount(), best.TotalCount())
	return best, nil
}

// Checker 返回引擎的约束检查器
func (e *Engine) Checker() *constraint.Checker {
	return e.checker
}

// Scorer 返回引擎的评分器
func (e *Engine) Scorer() *score.Scorer {
	return e.scorer
}

// GenerateSchedule 一次性生成课表的便捷入口
func GenerateSchedule(
	ctx context.Context,
	classes []*model.ClassItem,
	startDate string,
	constraints *model.ScheduleConstraints,
	preferences *model.SchedulePreferences,
	blackouts []model.SlotRef,
	opts *Options,
) (*model.Schedule, error) {
	engine, err := NewEngine(constraints, preferences, blackouts, opts)
	if err != nil {
		return nil, err
	}
	return engine.Generate(ctx, classes, startDate)
}
