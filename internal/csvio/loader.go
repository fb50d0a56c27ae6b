package csvio

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
)

// ClassCSVRow 课程CSV行。冲突列为分号分隔的"日期#节次"对，
// 例如 "2026-09-01#3;2026-09-02#5"。
type ClassCSVRow struct {
	Name             string `csv:"name"`
	GradeLevel       int    `csv:"grade_level"`
	GradeGroup       string `csv:"grade_group"`
	Teacher          string `csv:"teacher"`
	TotalConflicts   string `csv:"total_conflicts"`
	PartialConflicts string `csv:"partial_conflicts"`
}

// LoadClasses 从CSV文件加载课程清单
func LoadClasses(path string) ([]*model.ClassItem, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("打开CSV文件失败: %s", path))
	}
	defer f.Close()

	var rows []*ClassCSVRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析CSV失败")
	}

	classes := make([]*model.ClassItem, 0, len(rows))
	for i, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			return nil, errors.InvalidInput("name", fmt.Sprintf("第%d行课程名称不能为空", i+2))
		}
		total, err := parseSlotList(row.TotalConflicts)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("第%d行: 完全冲突格式错误", i+2))
		}
		partial, err := parseSlotList(row.PartialConflicts)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("第%d行: 部分冲突格式错误", i+2))
		}
		c := model.NewClassItem(row.Name, row.GradeLevel, row.GradeGroup)
		c.Teacher = row.Teacher
		c.TotalConflicts = total
		c.PartialConflicts = partial
		c.NormalizeConflicts()
		classes = append(classes, c)
	}
	return classes, nil
}

// parseSlotList 解析分号分隔的"日期#节次"对
func parseSlotList(raw string) ([]model.SlotRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ";")
	slots := make([]model.SlotRef, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, "#", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("缺少节次: %s", part)
		}
		if _, err := model.ParseDate(fields[0]); err != nil {
			return nil, fmt.Errorf("日期格式错误: %s", fields[0])
		}
		period, err := strconv.Atoi(fields[1])
		if err != nil || period < 1 {
			return nil, fmt.Errorf("节次格式错误: %s", fields[1])
		}
		slots = append(slots, model.SlotRef{Date: fields[0], Period: period})
	}
	return slots, nil
}
