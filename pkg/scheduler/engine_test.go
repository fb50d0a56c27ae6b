package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
)

func testOptions() *Options {
	return &Options{
		WorkerCount: 2,
		Seed:        42,
		WindowDays:  7,
	}
}

func TestEngine_Generate(t *testing.T) {
	classes := []*model.ClassItem{
		model.NewClassItem("语文", 1, "低年级"),
		model.NewClassItem("数学", 1, "低年级"),
		model.NewClassItem("英语", 4, "高年级"),
		model.NewClassItem("体育", 4, "高年级"),
	}

	engine, err := NewEngine(nil, nil, nil, testOptions())
	if err != nil {
		t.Fatalf("NewEngine 失败: %v", err)
	}

	s, err := engine.Generate(context.Background(), classes, "2026-03-02")
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	if s.ScheduledCount() != len(classes) {
		t.Errorf("ScheduledCount = %d, expected %d", s.ScheduledCount(), len(classes))
	}
	if s.Score == nil || s.Score.ConstraintViolations != 0 {
		t.Errorf("生成结果不应有硬违反: %+v", s.Score)
	}
	if s.Score.Aggregate <= 0 {
		t.Errorf("全排入课表的总分应为正, got %v", s.Score.Aggregate)
	}
}

func TestEngine_EndDateMatchesLatestScheduled(t *testing.T) {
	classes := []*model.ClassItem{
		model.NewClassItem("语文", 1, "低年级"),
		model.NewClassItem("数学", 2, "低年级"),
		model.NewClassItem("英语", 3, "中年级"),
		model.NewClassItem("科学", 4, "高年级"),
		model.NewClassItem("体育", 5, "高年级"),
	}

	// 退火会反复移动课程，结束日期必须始终等于实际最晚排课日期
	for seed := int64(1); seed <= 5; seed++ {
		opts := testOptions()
		opts.Seed = seed

		engine, err := NewEngine(nil, nil, nil, opts)
		if err != nil {
			t.Fatalf("NewEngine 失败: %v", err)
		}
		s, err := engine.Generate(context.Background(), classes, "2026-03-02")
		if err != nil {
			t.Fatalf("Generate 失败 (seed=%d): %v", seed, err)
		}

		latest := ""
		for _, scl := range s.Classes {
			if scl.Date > latest {
				latest = scl.Date
			}
		}
		if s.EndDate != latest {
			t.Errorf("seed=%d: EndDate = %s, 实际最晚排课日期 = %s", seed, s.EndDate, latest)
		}
	}
}

func TestEngine_GenerateInvalidInput(t *testing.T) {
	engine, err := NewEngine(nil, nil, nil, testOptions())
	if err != nil {
		t.Fatalf("NewEngine 失败: %v", err)
	}

	if _, err := engine.Generate(context.Background(), nil, "2026-03-02"); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("空课程列表应返回 INVALID_INPUT, got %v", err)
	}

	classes := []*model.ClassItem{model.NewClassItem("语文", 1, "")}
	if _, err := engine.Generate(context.Background(), classes, "2026/03/02"); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("非法日期格式应返回 INVALID_INPUT, got %v", err)
	}
}

func TestNewEngine_InvalidConstraints(t *testing.T) {
	bad := model.DefaultConstraints()
	bad.ConsecutivePeriods.Maximum = 5

	if _, err := NewEngine(bad, nil, nil, nil); !errors.Is(err, errors.CodeInvalidConstraint) {
		t.Errorf("非法约束应在构造时失败, got %v", err)
	}
}

func TestEngine_MaxClassesPerDayOne(t *testing.T) {
	// 每日最多一节时，各课程应分布在不同日期
	constraints := model.DefaultConstraints()
	constraints.MaxClassesPerDay = 1

	classes := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
	}

	engine, err := NewEngine(constraints, nil, nil, testOptions())
	if err != nil {
		t.Fatalf("NewEngine 失败: %v", err)
	}

	s, err := engine.Generate(context.Background(), classes, "2026-03-02")
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}

	if s.ScheduledCount() != 3 {
		t.Fatalf("ScheduledCount = %d, expected 3", s.ScheduledCount())
	}
	dates := make(map[string]bool)
	for _, sc := range s.Classes {
		if dates[sc.Date] {
			t.Errorf("日期 %s 被重复使用", sc.Date)
		}
		dates[sc.Date] = true
	}
}

func TestEngine_NoFeasibleSolution(t *testing.T) {
	// 窗口内全部时段禁排时返回 NO_FEASIBLE_SOLUTION
	constraints := model.DefaultConstraints()
	constraints.MaxPeriodsPerDay = 1
	constraints.MaxPeriodsPerWeek = 5

	var blackouts []model.SlotRef
	for day := 0; day < 7; day++ {
		blackouts = append(blackouts, model.SlotRef{
			Date: model.AddDays("2026-03-02", day), Period: 1,
		})
	}

	opts := testOptions()
	classes := []*model.ClassItem{model.NewClassItem("语文", 1, "")}

	engine, err := NewEngine(constraints, nil, blackouts, opts)
	if err != nil {
		t.Fatalf("NewEngine 失败: %v", err)
	}

	_, err = engine.Generate(context.Background(), classes, "2026-03-02")
	if !errors.Is(err, errors.CodeNoFeasibleSolution) {
		t.Errorf("应返回 NO_FEASIBLE_SOLUTION, got %v", err)
	}
}

func TestEngine_DeterministicWithSeed(t *testing.T) {
	run := func() float64 {
		classes := []*model.ClassItem{
			model.NewClassItem("语文", 1, "低年级"),
			model.NewClassItem("数学", 2, "低年级"),
			model.NewClassItem("英语", 4, "高年级"),
		}
		s, err := GenerateSchedule(context.Background(), classes, "2026-03-02", nil, nil, nil, testOptions())
		if err != nil {
			t.Fatalf("GenerateSchedule 失败: %v", err)
		}
		return s.Score.Aggregate
	}

	if first, second := run(), run(); first != second {
		t.Errorf("固定种子下两次生成结果应一致: %v vs %v", first, second)
	}
}

func TestEngine_Timeout(t *testing.T) {
	classes := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
	}

	engine, err := NewEngine(nil, nil, nil, testOptions())
	if err != nil {
		t.Fatalf("NewEngine 失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err = engine.Generate(ctx, classes, "2026-03-02")
	if !errors.Is(err, errors.CodeTimeout) {
		t.Errorf("超时应返回 TIMEOUT, got %v", err)
	}
}
