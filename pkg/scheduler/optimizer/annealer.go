// Package optimizer 提供模拟退火搜索
package optimizer

import (
	"context"
	"math"
	"math/rand"

	"github.com/paike/paike/pkg/logger"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/score"
)

// AnnealConfig 退火配置
type AnnealConfig struct {
	InitialTemp       float64 `json:"initial_temp"`        // 初始温度
	CoolingRate       float64 `json:"cooling_rate"`        // 冷却速率 (0,1)
	MinTemp           float64 `json:"min_temp"`            // 最低温度，必须为正
	IterationsPerTemp int     `json:"iterations_per_temp"` // 每个温度档的迭代次数
	MaxIterations     int     `json:"max_iterations"`      // 最大迭代次数
	StallLimit        int     `json:"stall_limit"`         // 无改进迭代上限
	MaxRestarts       int     `json:"max_restarts"`        // 停滞后的最大重启次数
}

// DefaultAnnealConfig 默认退火配置
func DefaultAnnealConfig() AnnealConfig {
	return AnnealConfig{
		InitialTemp:       2000.0,
		CoolingRate:       0.98,
		MinTemp:           1.0,
		IterationsPerTemp: 50,
		MaxIterations:     20000,
		StallLimit:        1000,
		MaxRestarts:       2,
	}
}

// normalize 修正非法配置取值
// 最低温度必须严格为正，接受概率计算依赖温度非零
func (c *AnnealConfig) normalize() {
	if c.InitialTemp <= 0 {
		c.InitialTemp = 2000.0
	}
	if c.CoolingRate <= 0 || c.CoolingRate >= 1 {
		c.CoolingRate = 0.98
	}
	if c.MinTemp <= 0 {
		c.MinTemp = 1.0
	}
	if c.IterationsPerTemp <= 0 {
		c.IterationsPerTemp = 50
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20000
	}
	if c.StallLimit <= 0 {
		c.StallLimit = 1000
	}
	if c.MaxRestarts < 0 {
		c.MaxRestarts = 0
	}
}

// Annealer 模拟退火引擎
// 独占自己的当前解和最优解克隆，多个实例之间无共享可变状态
type Annealer struct {
	config    AnnealConfig
	scorer    *score.Scorer
	neighbors *NeighborhoodGenerator
	rng       *rand.Rand
	logger    *logger.EngineLogger
	runIndex  int
}

// NewAnnealer 创建退火引擎
func NewAnnealer(config AnnealConfig, scorer *score.Scorer, neighbors *NeighborhoodGenerator, rng *rand.Rand) *Annealer {
	config.normalize()
	return &Annealer{
		config:    config,
		scorer:    scorer,
		neighbors: neighbors,
		rng:       rng,
		logger:    logger.NewEngineLogger(),
	}
}

// SetRunIndex 设置运行编号（用于日志标识）
func (a *Annealer) SetRunIndex(idx int) {
	a.runIndex = idx
}

// Run 执行退火搜索
// Metropolis 准则：更优解总是接受，更差解以 exp(Δ/T) 的概率接受；
// 最优解独立跟踪，同分时保持现有最优不变
func (a *Annealer) Run(ctx context.Context, initial *model.Schedule) (*model.Schedule, error) {
	current := initial.Clone()
	if current.Score == nil {
		a.scorer.Score(current)
	}
	best := current.Clone()

	temperature := a.config.InitialTemp
	lastImprovement := 0
	restarts := 0
	iterations := 0

	for iter := 0; iter < a.config.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return best, ctx.Err()
		default:
		}
		iterations = iter + 1

		// 长时间无改进时触发摇动，帮助跳出局部最优
		stalled := iter-lastImprovement >= a.config.StallLimit/4

		candidate, _ := a.neighbors.GenerateNeighbor(current, stalled)
		a.scorer.Score(candidate)

		delta := candidate.Score.Aggregate - current.Score.Aggregate
		if delta > 0 {
			current = candidate
		} else if a.rng.Float64() < math.Exp(delta/temperature) {
			current = candidate
		}

		// 最优解跟踪与是否接受无关
		if candidate.Score.Aggregate > best.Score.Aggregate {
			best = candidate.Clone()
			lastImprovement = iter
			a.logger.NewBest(a.runIndex, iter, best.Score.Aggregate)
		}

		// 降温
		if (iter+1)%a.config.IterationsPerTemp == 0 {
			temperature *= a.config.CoolingRate
			if temperature <= a.config.MinTemp {
				break
			}
		}

		// 停滞处理：允许重启时回温，否则提前结束
		if iter-lastImprovement >= a.config.StallLimit {
			if restarts < a.config.MaxRestarts {
				restarts++
				temperature = a.config.InitialTemp * 0.5
				current = best.Clone()
				lastImprovement = iter
			} else {
				break
			}
		}
	}

	a.logger.RunComplete(a.runIndex, iterations, best.Score.Aggregate, best.ScheduledCount(), best.TotalCount())
	return best, nil
}
