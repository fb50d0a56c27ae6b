// Package optimizer 提供模拟退火搜索
package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/logger"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
	"github.com/paike/paike/pkg/scheduler/score"
	"github.com/paike/paike/pkg/scheduler/solver"
)

// MaxWorkers 并行退火运行数上限
const MaxWorkers = 8

// seedStride 各运行随机种子的间隔（质数，避免种子序列重合）
const seedStride = 10007

// ParallelScheduler 多运行聚合器
// 启动若干参数各异的独立退火运行，汇合后取总分最高的课表
type ParallelScheduler struct {
	baseConfig AnnealConfig
	workers    int
	windowDays int
	checker    *constraint.Checker
	scorer     *score.Scorer
	logger     *logger.EngineLogger
}

// NewParallelScheduler 创建多运行聚合器
func NewParallelScheduler(baseConfig AnnealConfig, workers int, checker *constraint.Checker, scorer *score.Scorer) *ParallelScheduler {
	if workers <= 0 {
		workers = 4
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	baseConfig.normalize()
	return &ParallelScheduler{
		baseConfig: baseConfig,
		workers:    workers,
		windowDays: solver.DefaultWindowDays,
		checker:    checker,
		scorer:     scorer,
		logger:     logger.NewEngineLogger(),
	}
}

// SetWindowDays 设置候选日期窗口长度
func (p *ParallelScheduler) SetWindowDays(days int) {
	if days > 0 {
		p.windowDays = days
	}
}

// diversify 按运行编号派生多样化参数
func (p *ParallelScheduler) diversify(i int) AnnealConfig {
	cfg := p.baseConfig
	cfg.InitialTemp = p.baseConfig.InitialTemp * (1.0 + float64(i)*0.2)
	cfg.CoolingRate = p.baseConfig.CoolingRate - float64(i)*0.001
	cfg.MinTemp = p.baseConfig.MinTemp * (1.0 + float64(i)*0.1)
	cfg.IterationsPerTemp = p.baseConfig.IterationsPerTemp + i*50
	cfg.normalize()
	return cfg
}

// Run 并行执行独立退火运行并归约
// 各运行持有独立的随机源和课表克隆，彼此不共享可变状态；
// 单个运行崩溃或产出空课表时被排除，仅当全部失败才返回错误
func (p *ParallelScheduler) Run(ctx context.Context, classes []*model.ClassItem, startDate string, seed int64) (*model.Schedule, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	results := make([]*model.Schedule, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(run int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.RunFault(run, fmt.Sprintf("panic: %v", r))
				}
			}()

			rng := rand.New(rand.NewSource(seed + int64(run)*seedStride))

			greedy := solver.NewGreedySolver(p.checker, p.scorer, rng)
			greedy.SetWindowDays(p.windowDays)
			initial, err := greedy.Build(ctx, classes, startDate)
			if err != nil {
				p.logger.RunFault(run, err.Error())
				return
			}

			neighbors := NewNeighborhoodGenerator(p.checker, rng)
			neighbors.SetWindowDays(p.windowDays)
			annealer := NewAnnealer(p.diversify(run), p.scorer, neighbors, rng)
			annealer.SetRunIndex(run)

			best, err := annealer.Run(ctx, initial)
			if err != nil {
				// 被取消的运行不贡献结果
				p.logger.RunFault(run, err.Error())
				return
			}
			results[run] = best
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), errors.CodeTimeout, "课表生成被取消")
	}

	return p.reduce(results)
}

// reduce 从各运行结果中取总分最高的课表
// 空课表的运行视为失败被排除
func (p *ParallelScheduler) reduce(results []*model.Schedule) (*model.Schedule, error) {
	var best *model.Schedule
	for _, s := range results {
		if s == nil || s.ScheduledCount() == 0 {
			continue
		}
		if best == nil || s.Score.Aggregate > best.Score.Aggregate {
			best = s
		}
	}
	if best == nil {
		return nil, errors.NoFeasibleSolution("所有退火运行均未排入任何课程")
	}
	return best, nil
}
