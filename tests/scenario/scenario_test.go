// Package scenario 提供场景测试
package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler"
)

func testOptions(seed int64) *scheduler.Options {
	return &scheduler.Options{
		WorkerCount: 2,
		Seed:        seed,
		WindowDays:  7,
	}
}

// TestGradeGroupCohesion 年级组同日聚合场景
// 低年级和高年级各2门课，优化后应倾向于各组独占一天
func TestGradeGroupCohesion(t *testing.T) {
	classes := []*model.ClassItem{
		model.NewClassItem("语文一", 1, ""),
		model.NewClassItem("数学一", 2, ""),
		model.NewClassItem("物理五", 5, ""),
		model.NewClassItem("化学六", 6, ""),
	}
	prefs := model.DefaultPreferences()
	prefs.GradeGroups = map[string][]int{
		"低年级": {1, 2, 3},
		"高年级": {4, 5, 6},
	}

	result, err := scheduler.GenerateSchedule(context.Background(), classes, "2026-03-02",
		nil, prefs, nil, testOptions(7))
	if err != nil {
		t.Fatalf("排课失败: %v", err)
	}

	t.Logf("排入 %d/%d, 聚合评分=%.3f, 综合评分=%.3f",
		len(result.Classes), len(classes), result.Score.GradeGroupCohesion, result.Score.Aggregate)

	if len(result.Classes) != 4 {
		t.Fatalf("应全部排入, got %d", len(result.Classes))
	}
	if result.Score.GradeGroupCohesion < 0.5 {
		t.Errorf("聚合评分过低: %v", result.Score.GradeGroupCohesion)
	}
	if result.Score.ConstraintViolations != 0 {
		t.Errorf("不应有约束违规: %d", result.Score.ConstraintViolations)
	}
}

// TestBlackoutsNeverUsed 禁排时段场景
func TestBlackoutsNeverUsed(t *testing.T) {
	classes := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
	}

	// 整周的第1节全部禁排
	var blackouts []model.SlotRef
	for i := 0; i < 7; i++ {
		blackouts = append(blackouts, model.SlotRef{Date: model.AddDays("2026-03-02", i), Period: 1})
	}

	result, err := scheduler.GenerateSchedule(context.Background(), classes, "2026-03-02",
		nil, nil, blackouts, testOptions(11))
	if err != nil {
		t.Fatalf("排课失败: %v", err)
	}

	banned := make(map[model.SlotRef]bool, len(blackouts))
	for _, b := range blackouts {
		banned[b] = true
	}
	for _, sc := range result.Classes {
		if banned[model.SlotRef{Date: sc.Date, Period: sc.Period}] {
			t.Errorf("课程 %s 排在禁排时段 %s 第%d节", sc.Class.Name, sc.Date, sc.Period)
		}
	}
	if len(result.Classes) != 3 {
		t.Errorf("应全部排入, got %d", len(result.Classes))
	}
}

// TestPartialConflictsFullCompletion 软冲突不阻止排入
func TestPartialConflictsFullCompletion(t *testing.T) {
	constraints := model.DefaultConstraints()
	classes := []*model.ClassItem{
		model.NewClassItem("音乐", 1, ""),
		model.NewClassItem("美术", 1, ""),
	}
	// 窗口内所有时段都是软冲突
	for _, c := range classes {
		for i := 0; i < 7; i++ {
			date := model.AddDays("2026-03-02", i)
			for p := 1; p <= constraints.MaxPeriodsPerDay; p++ {
				c.PartialConflicts = append(c.PartialConflicts, model.SlotRef{Date: date, Period: p})
			}
		}
	}

	result, err := scheduler.GenerateSchedule(context.Background(), classes, "2026-03-02",
		constraints, nil, nil, testOptions(13))
	if err != nil {
		t.Fatalf("排课失败: %v", err)
	}

	t.Logf("排入率=%.2f, 软冲突计数=%.0f", result.CompletionRate(), result.Score.PartialConflictPenalty*float64(len(result.Classes)))

	if result.CompletionRate() != 1.0 {
		t.Errorf("软冲突不应阻止排入, 排入率=%v", result.CompletionRate())
	}
	if result.Score.ConstraintViolations != 0 {
		t.Errorf("软冲突不应计为违规: %d", result.Score.ConstraintViolations)
	}
}

// TestMutuallyExclusiveConflicts 互斥硬冲突场景
// 每天只有2节，A禁第1节、B禁第2节，两门课仍应全部排入且无违规
func TestMutuallyExclusiveConflicts(t *testing.T) {
	constraints := model.DefaultConstraints()
	constraints.MaxPeriodsPerDay = 2
	constraints.MaxPeriodsPerWeek = 10

	a := model.NewClassItem("课程A", 1, "")
	b := model.NewClassItem("课程B", 1, "")
	for i := 0; i < 7; i++ {
		date := model.AddDays("2026-03-02", i)
		a.TotalConflicts = append(a.TotalConflicts, model.SlotRef{Date: date, Period: 1})
		b.TotalConflicts = append(b.TotalConflicts, model.SlotRef{Date: date, Period: 2})
	}

	result, err := scheduler.GenerateSchedule(context.Background(), []*model.ClassItem{a, b},
		"2026-03-02", constraints, nil, nil, testOptions(29))
	if err != nil {
		t.Fatalf("排课失败: %v", err)
	}
	if len(result.Classes) != 2 {
		t.Fatalf("两门课应全部排入, got %d", len(result.Classes))
	}
	if result.Score.ConstraintViolations != 0 {
		t.Errorf("不应有约束违规: %d", result.Score.ConstraintViolations)
	}
	for _, sc := range result.Classes {
		if sc.Class.HasTotalConflict(sc.Date, sc.Period) {
			t.Errorf("课程 %s 排在自身硬冲突时段 %s 第%d节", sc.Class.Name, sc.Date, sc.Period)
		}
	}
}

// TestMaxOneClassPerDay 每日单课场景
func TestMaxOneClassPerDay(t *testing.T) {
	constraints := model.DefaultConstraints()
	constraints.MaxClassesPerDay = 1

	classes := []*model.ClassItem{
		model.NewClassItem("语文", 1, ""),
		model.NewClassItem("数学", 1, ""),
		model.NewClassItem("英语", 1, ""),
		model.NewClassItem("体育", 1, ""),
	}

	result, err := scheduler.GenerateSchedule(context.Background(), classes, "2026-03-02",
		constraints, nil, nil, testOptions(17))
	if err != nil {
		t.Fatalf("排课失败: %v", err)
	}
	if len(result.Classes) != 4 {
		t.Fatalf("应全部排入, got %d", len(result.Classes))
	}

	seen := make(map[string]bool)
	for _, sc := range result.Classes {
		if seen[sc.Date] {
			t.Errorf("日期 %s 排入多于1门课程", sc.Date)
		}
		seen[sc.Date] = true
	}
}

// TestProgressionLowToHigh 年级递进场景
func TestProgressionLowToHigh(t *testing.T) {
	prefs := model.DefaultPreferences()
	prefs.GradeProgression = model.ProgressionLowToHigh

	classes := []*model.ClassItem{
		model.NewClassItem("一年级课", 1, ""),
		model.NewClassItem("三年级课", 3, ""),
		model.NewClassItem("六年级课", 6, ""),
	}

	result, err := scheduler.GenerateSchedule(context.Background(), classes, "2026-03-02",
		nil, prefs, nil, testOptions(19))
	if err != nil {
		t.Fatalf("排课失败: %v", err)
	}

	t.Logf("递进评分=%.3f", result.Score.GradeProgression)
	if result.Score.GradeProgression < 0.5 {
		t.Errorf("递进评分过低: %v", result.Score.GradeProgression)
	}
}

// TestGenerationTimeout 超时场景
func TestGenerationTimeout(t *testing.T) {
	classes := make([]*model.ClassItem, 0, 20)
	for i := 0; i < 20; i++ {
		classes = append(classes, model.NewClassItem(string(rune('A'+i)), i%6+1, ""))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := scheduler.GenerateSchedule(ctx, classes, "2026-03-02", nil, nil, nil, testOptions(23))
	if err == nil {
		t.Fatal("超时应返回错误")
	}
	if !errors.Is(err, errors.CodeTimeout) {
		t.Errorf("错误码应为 TIMEOUT, got %v", err)
	}
}
