package score

import (
	"math"
	"testing"

	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler/constraint"
)

func newTestScorer(t *testing.T, prefs *model.SchedulePreferences) (*Scorer, *constraint.Checker) {
	t.Helper()
	checker, err := constraint.NewChecker(model.DefaultConstraints(), nil)
	if err != nil {
		t.Fatalf("NewChecker 失败: %v", err)
	}
	return NewScorer(checker, prefs), checker
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScorer_GradeGroupCohesion(t *testing.T) {
	prefs := model.DefaultPreferences()
	scorer, checker := newTestScorer(t, prefs)

	a1 := model.NewClassItem("语文A", 1, "低年级")
	a2 := model.NewClassItem("数学A", 1, "低年级")
	b1 := model.NewClassItem("语文B", 4, "高年级")
	b2 := model.NewClassItem("数学B", 4, "高年级")
	catalogue := []*model.ClassItem{a1, a2, b1, b2}

	// 两个年级组分别集中在两天，聚合度应为1.0
	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s.AddClass(&model.ScheduledClass{Class: a1, Date: "2026-03-02", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: a2, Date: "2026-03-02", Period: 3})
	s.AddClass(&model.ScheduledClass{Class: b1, Date: "2026-03-03", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: b2, Date: "2026-03-03", Period: 3})

	v := scorer.Score(s)
	if !almostEqual(v.GradeGroupCohesion, 1.0) {
		t.Errorf("分天排列的聚合度 = %v, expected 1.0", v.GradeGroupCohesion)
	}

	// 两个年级组混在同一天，聚合度应为0.5
	s2 := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s2.AddClass(&model.ScheduledClass{Class: a1, Date: "2026-03-02", Period: 1})
	s2.AddClass(&model.ScheduledClass{Class: a2, Date: "2026-03-02", Period: 3})
	s2.AddClass(&model.ScheduledClass{Class: b1, Date: "2026-03-02", Period: 5})
	s2.AddClass(&model.ScheduledClass{Class: b2, Date: "2026-03-02", Period: 7})

	v2 := scorer.Score(s2)
	if !almostEqual(v2.GradeGroupCohesion, 0.5) {
		t.Errorf("混排的聚合度 = %v, expected 0.5", v2.GradeGroupCohesion)
	}
}

func TestScorer_DistributionQuality(t *testing.T) {
	scorer, checker := newTestScorer(t, nil)

	catalogue := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
		model.NewClassItem("体育", 1, ""),
	}

	// 每天2节，方差为0，均匀度应为1.0
	even := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	even.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})
	even.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-02", Period: 3})
	even.AddClass(&model.ScheduledClass{Class: catalogue[2], Date: "2026-03-03", Period: 1})
	even.AddClass(&model.ScheduledClass{Class: catalogue[3], Date: "2026-03-03", Period: 3})

	v := scorer.Score(even)
	if !almostEqual(v.DistributionQuality, 1.0) {
		t.Errorf("均匀分布的均匀度 = %v, expected 1.0", v.DistributionQuality)
	}

	// 3+1分布，方差为1，均匀度应为0.5
	skewed := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	skewed.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})
	skewed.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-02", Period: 3})
	skewed.AddClass(&model.ScheduledClass{Class: catalogue[2], Date: "2026-03-02", Period: 5})
	skewed.AddClass(&model.ScheduledClass{Class: catalogue[3], Date: "2026-03-03", Period: 1})

	v2 := scorer.Score(skewed)
	if !almostEqual(v2.DistributionQuality, 0.5) {
		t.Errorf("偏斜分布的均匀度 = %v, expected 0.5", v2.DistributionQuality)
	}
	if v2.DistributionQuality >= v.DistributionQuality {
		t.Error("偏斜分布的均匀度应低于均匀分布")
	}
}

func TestScorer_GradeProgression(t *testing.T) {
	prefs := model.DefaultPreferences()
	prefs.GradeProgression = model.ProgressionLowToHigh

	scorer, checker := newTestScorer(t, prefs)

	low := model.NewClassItem("低年级课", 1, "")
	high := model.NewClassItem("高年级课", 5, "")
	catalogue := []*model.ClassItem{low, high}

	// 低年级在前，满足低到高排列
	ordered := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	ordered.AddClass(&model.ScheduledClass{Class: low, Date: "2026-03-02", Period: 1})
	ordered.AddClass(&model.ScheduledClass{Class: high, Date: "2026-03-02", Period: 3})

	v := scorer.Score(ordered)
	if !almostEqual(v.GradeProgression, 1.0) {
		t.Errorf("顺序排列的排列得分 = %v, expected 1.0", v.GradeProgression)
	}

	// 高年级在前，完全不满足
	reversed := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	reversed.AddClass(&model.ScheduledClass{Class: high, Date: "2026-03-02", Period: 1})
	reversed.AddClass(&model.ScheduledClass{Class: low, Date: "2026-03-02", Period: 3})

	v2 := scorer.Score(reversed)
	if !almostEqual(v2.GradeProgression, 0.0) {
		t.Errorf("逆序排列的排列得分 = %v, expected 0.0", v2.GradeProgression)
	}
	if v2.Aggregate >= v.Aggregate {
		t.Error("逆序排列的总分应低于顺序排列")
	}
}

func TestScorer_ProgressionNoneExcluded(t *testing.T) {
	// 偏好为 none 时排列分量不计入总分
	scorer, checker := newTestScorer(t, nil)

	low := model.NewClassItem("低年级课", 1, "")
	high := model.NewClassItem("高年级课", 5, "")
	catalogue := []*model.ClassItem{low, high}

	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s.AddClass(&model.ScheduledClass{Class: high, Date: "2026-03-02", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: low, Date: "2026-03-02", Period: 3})

	v := scorer.Score(s)
	if v.GradeProgression != 0 {
		t.Errorf("偏好为 none 时排列得分 = %v, expected 0", v.GradeProgression)
	}

	expected := 1.0*v.TotalLength + 0.5*v.GradeGroupCohesion + 0.3*v.DistributionQuality
	if !almostEqual(v.Aggregate, expected) {
		t.Errorf("Aggregate = %v, expected %v", v.Aggregate, expected)
	}
}

func TestScorer_ConstraintViolations(t *testing.T) {
	scorer, checker := newTestScorer(t, nil)

	conflicted := model.NewClassItem("体育", 1, "")
	conflicted.TotalConflicts = []model.SlotRef{{Date: "2026-03-02", Period: 1}}
	catalogue := []*model.ClassItem{conflicted}

	// 排在自身硬冲突时段应计为违反
	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s.AddClass(&model.ScheduledClass{Class: conflicted, Date: "2026-03-02", Period: 1})

	v := scorer.Score(s)
	if v.ConstraintViolations != 1 {
		t.Errorf("ConstraintViolations = %d, expected 1", v.ConstraintViolations)
	}
	if v.Aggregate >= 0 {
		t.Errorf("存在硬违反时总分应为负, got %v", v.Aggregate)
	}
}

func TestScorer_ConsecutiveBreakViolation(t *testing.T) {
	// 最大连排2节且需要2个空闲节次：1-2连排后第4节仍在空闲窗口内
	constraints := model.DefaultConstraints()
	constraints.ConsecutivePeriods = model.ConsecutiveRule{Maximum: 2, RequireBreak: 2}
	checker, err := constraint.NewChecker(constraints, nil)
	if err != nil {
		t.Fatalf("NewChecker 失败: %v", err)
	}
	scorer := NewScorer(checker, nil)

	catalogue := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
	}
	s := model.NewSchedule(catalogue, "2026-03-02", constraints)
	s.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-02", Period: 2})
	s.AddClass(&model.ScheduledClass{Class: catalogue[2], Date: "2026-03-02", Period: 4})

	// 约束检查器认定违反时评分也必须计入
	if !checker.ViolatesConsecutive(s, "2026-03-02", 1) {
		t.Fatal("约束检查器应认定连排违反")
	}
	v := scorer.Score(s)
	if v.ConstraintViolations != 1 {
		t.Errorf("ConstraintViolations = %d, expected 1", v.ConstraintViolations)
	}
	if v.Aggregate >= 0 {
		t.Errorf("存在硬违反时总分应为负, got %v", v.Aggregate)
	}
}

func TestScorer_PartialConflictPenalty(t *testing.T) {
	scorer, checker := newTestScorer(t, nil)

	soft := model.NewClassItem("音乐", 1, "")
	soft.PartialConflicts = []model.SlotRef{{Date: "2026-03-02", Period: 1}}
	clean := model.NewClassItem("美术", 1, "")
	catalogue := []*model.ClassItem{soft, clean}

	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s.AddClass(&model.ScheduledClass{Class: soft, Date: "2026-03-02", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: clean, Date: "2026-03-02", Period: 3})

	v := scorer.Score(s)
	if !almostEqual(v.PartialConflictPenalty, 0.5) {
		t.Errorf("PartialConflictPenalty = %v, expected 0.5", v.PartialConflictPenalty)
	}

	// 默认权重下软冲突不影响总分
	expected := 1.0*v.TotalLength + 0.5*v.GradeGroupCohesion + 0.3*v.DistributionQuality
	if !almostEqual(v.Aggregate, expected) {
		t.Errorf("软冲突不应计入默认总分: Aggregate = %v, expected %v", v.Aggregate, expected)
	}
}

func TestScorer_Idempotent(t *testing.T) {
	scorer, checker := newTestScorer(t, nil)

	catalogue := []*model.ClassItem{
		model.NewClassItem("语文", 1, "低年级"),
		model.NewClassItem("数学", 4, "高年级"),
	}
	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())
	s.AddClass(&model.ScheduledClass{Class: catalogue[0], Date: "2026-03-02", Period: 1})
	s.AddClass(&model.ScheduledClass{Class: catalogue[1], Date: "2026-03-03", Period: 2})

	first := scorer.Score(s)
	second := scorer.Score(s)
	if *first != *second {
		t.Errorf("同一课表两次评分应相同: %+v vs %+v", first, second)
	}
}

func TestScorer_EmptySchedule(t *testing.T) {
	scorer, checker := newTestScorer(t, nil)

	catalogue := []*model.ClassItem{model.NewClassItem("语文", 1, "")}
	s := model.NewSchedule(catalogue, "2026-03-02", checker.Constraints())

	v := scorer.Score(s)
	if v.TotalLength != 0 {
		t.Errorf("无排课时 TotalLength = %v, expected 0", v.TotalLength)
	}
	if v.GradeGroupCohesion != 0 || v.DistributionQuality != 0 {
		t.Error("无排课时质量分量应为0")
	}
	if v.ConstraintViolations != 0 {
		t.Errorf("空课表不应有违反, got %d", v.ConstraintViolations)
	}
}
