// Package csvio 提供课表的CSV导入导出
package csvio

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
)

// ScheduleCSVRow 课表CSV行
type ScheduleCSVRow struct {
	Date       string `csv:"date"`
	Period     int    `csv:"period"`
	ClassName  string `csv:"class_name"`
	GradeLevel int    `csv:"grade_level"`
	GradeGroup string `csv:"grade_group"`
	Teacher    string `csv:"teacher"`
}

// formatSchedule 将课表转换为按日期、节次排序的CSV行
func formatSchedule(schedule *model.Schedule) []*ScheduleCSVRow {
	rows := make([]*ScheduleCSVRow, 0, len(schedule.Classes))
	for _, sc := range schedule.Classes {
		rows = append(rows, &ScheduleCSVRow{
			Date:       sc.Date,
			Period:     sc.Period,
			ClassName:  sc.Class.Name,
			GradeLevel: sc.Class.GradeLevel,
			GradeGroup: sc.Class.GradeGroup,
			Teacher:    sc.Class.Teacher,
		})
	}
	slices.SortFunc(rows, func(a, b *ScheduleCSVRow) int {
		if d := strings.Compare(a.Date, b.Date); d != 0 {
			return d
		}
		if p := a.Period - b.Period; p != 0 {
			return p
		}
		return strings.Compare(a.ClassName, b.ClassName)
	})
	return rows
}

// ExportSchedule 将课表导出到指定路径的CSV文件
func ExportSchedule(schedule *model.Schedule, path string) error {
	if schedule == nil {
		return errors.InvalidInput("schedule", "课表不能为空")
	}
	rows := formatSchedule(schedule)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("创建CSV文件失败: %s", path))
	}
	defer out.Close()

	if err := gocsv.MarshalFile(&rows, out); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "写入CSV失败")
	}
	return nil
}

// ExportScheduleString 将课表导出为CSV字符串
func ExportScheduleString(schedule *model.Schedule) (string, error) {
	if schedule == nil {
		return "", errors.InvalidInput("schedule", "课表不能为空")
	}
	rows := formatSchedule(schedule)

	str, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "序列化CSV失败")
	}
	return str, nil
}
