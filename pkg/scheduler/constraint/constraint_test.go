package constraint

import (
	"testing"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
)

func newTestChecker(t *testing.T, constraints *model.ScheduleConstraints, blackouts []model.SlotRef) *Checker {
	t.Helper()
	checker, err := NewChecker(constraints, blackouts)
	if err != nil {
		t.Fatalf("NewChecker 失败: %v", err)
	}
	return checker
}

func TestNewChecker_InvalidConstraints(t *testing.T) {
	bad := model.DefaultConstraints()
	bad.MaxPeriodsPerDay = 0

	_, err := NewChecker(bad, nil)
	if err == nil {
		t.Fatal("非法约束配置应返回错误")
	}
	if !errors.Is(err, errors.CodeInvalidConstraint) {
		t.Errorf("错误码应为 INVALID_CONSTRAINT, got %v", errors.GetCode(err))
	}
}

func TestChecker_Blackouts(t *testing.T) {
	constraints := model.DefaultConstraints()
	constraints.BlackoutPeriods = []model.SlotRef{{Date: "2026-03-02", Period: 1}}
	extra := []model.SlotRef{{Date: "2026-03-03", Period: 2}}

	checker := newTestChecker(t, constraints, extra)

	// 配置内和额外传入的禁排时段都生效
	if !checker.IsBlackout("2026-03-02", 1) {
		t.Error("约束配置中的禁排时段应生效")
	}
	if !checker.IsBlackout("2026-03-03", 2) {
		t.Error("额外传入的禁排时段应生效")
	}
	if checker.IsBlackout("2026-03-04", 1) {
		t.Error("未配置的时段不应为禁排")
	}
}

func TestChecker_CheckClassConflicts(t *testing.T) {
	checker := newTestChecker(t, nil, nil)

	class := model.NewClassItem("语文", 1, "")
	class.TotalConflicts = []model.SlotRef{{Date: "2026-03-02", Period: 1}}
	class.PartialConflicts = []model.SlotRef{
		{Date: "2026-03-02", Period: 1},
		{Date: "2026-03-02", Period: 1},
	}

	// 硬冲突存在时软冲突数仍然被计算
	check := checker.CheckClassConflicts("2026-03-02", 1, class)
	if !check.HasConflict {
		t.Error("应报硬冲突")
	}
	if check.PartialConflictCount != 2 {
		t.Errorf("PartialConflictCount = %d, expected 2", check.PartialConflictCount)
	}
}

func TestChecker_Consecutive(t *testing.T) {
	// 最大连排2节，连排后需要1个空闲节次
	checker := newTestChecker(t, nil, nil)
	catalogue := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
	}

	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-02", Period: 2})

	// 已有1-2连排，排入第3节会形成3连排
	if !checker.WouldViolateConsecutive(s, "2026-03-02", 3) {
		t.Error("3连排应违反连排规则")
	}

	// 第4节与1-2连排之间隔着空闲的第3节，允许
	if checker.WouldViolateConsecutive(s, "2026-03-02", 4) {
		t.Error("隔开的节次不应违反连排规则")
	}

	// 当日末尾的连排无需后续空闲节次
	s2 := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s2.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 7})
	if checker.WouldViolateConsecutive(s2, "2026-03-02", 8) {
		t.Error("日末连排不需要后续空闲节次")
	}
}

func TestChecker_ConsecutiveMaximumOneWithBreak(t *testing.T) {
	// 最大连排1节且需要2个空闲节次：隔一节仍不够
	constraints := model.DefaultConstraints()
	constraints.ConsecutivePeriods = model.ConsecutiveRule{Maximum: 1, RequireBreak: 2}
	checker := newTestChecker(t, constraints, nil)

	catalogue := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
	}
	s := model.NewSchedule(catalogue, "2026-03-02", constraints)
	s.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 3})

	// 第3节已占用时排入第1节，其后两节内有占用
	if !checker.WouldViolateConsecutive(s, "2026-03-02", 1) {
		t.Error("间隔1节排入应违反连排规则")
	}

	// 第1、3节均已占用时，第1节课后两节内有占用
	s.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-02", Period: 1})
	if !checker.ViolatesConsecutive(s, "2026-03-02", 1) {
		t.Error("第1节其后两节内有占用，应违反连排规则")
	}

	// 间隔2节满足空闲要求
	s2 := model.NewSchedule(catalogue, "2026-03-02", constraints)
	s2.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})
	if checker.WouldViolateConsecutive(s2, "2026-03-02", 4) {
		t.Error("间隔2节排入不应违反连排规则")
	}
}

func TestChecker_CanPlace(t *testing.T) {
	constraints := model.DefaultConstraints()
	constraints.MaxClassesPerDay = 2
	constraints.MaxPeriodsPerWeek = 10
	constraints.BlackoutPeriods = []model.SlotRef{{Date: "2026-03-02", Period: 5}}
	checker := newTestChecker(t, constraints, nil)

	conflicted := model.NewClassItem("体育", 1, "")
	conflicted.TotalConflicts = []model.SlotRef{{Date: "2026-03-02", Period: 4}}

	catalogue := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
		conflicted,
	}
	s := model.NewSchedule(catalogue, "2026-03-02", constraints)
	s.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})

	tests := []struct {
		name   string
		class  *model.ClassItem
		date   string
		period int
		want   bool
	}{
		{"合法时段", catalogue[1], "2026-03-02", 3, true},
		{"节次超出范围", catalogue[1], "2026-03-02", 9, false},
		{"时段已被占用", catalogue[1], "2026-03-02", 1, false},
		{"全局禁排时段", catalogue[1], "2026-03-02", 5, false},
		{"课程硬冲突", conflicted, "2026-03-02", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := checker.CanPlace(s, tt.class, tt.date, tt.period)
			if got != tt.want {
				t.Errorf("CanPlace = %v (%s), expected %v", got, reason, tt.want)
			}
		})
	}

	// 每日上限
	s.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-02", Period: 3})
	if ok, _ := checker.CanPlace(s, catalogue[2], "2026-03-02", 6); ok {
		t.Error("超过每日上限应拒绝")
	}

	// 每周上限：同一周的其他日期仍计入
	if ok, _ := checker.CanPlace(s, catalogue[2], "2026-03-03", 1); !ok {
		t.Error("次日排课应允许")
	}
}
