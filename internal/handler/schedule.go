// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paike/paike/internal/csvio"
	"github.com/paike/paike/internal/metrics"
	"github.com/paike/paike/internal/repository"
	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/model"
	"github.com/paike/paike/pkg/scheduler"
	"github.com/paike/paike/pkg/scheduler/optimizer"
	"github.com/paike/paike/pkg/scheduler/score"
	"github.com/paike/paike/pkg/validator"
)

// ScheduleHandler 排课处理器
type ScheduleHandler struct {
	scheduleRepo   repository.ScheduleRepositoryInterface
	defaultTimeout time.Duration
	workerCount    int
	windowDays     int
	seed           int64
}

// NewScheduleHandler 创建排课处理器
// repo 为 nil 时持久化相关端点返回未启用错误
func NewScheduleHandler(repo repository.ScheduleRepositoryInterface, defaultTimeout time.Duration, workerCount, windowDays int, seed int64) *ScheduleHandler {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	return &ScheduleHandler{
		scheduleRepo:   repo,
		defaultTimeout: defaultTimeout,
		workerCount:    workerCount,
		windowDays:     windowDays,
		seed:           seed,
	}
}

// SlotInput 时段输入
type SlotInput struct {
	Date   string `json:"date"`   // YYYY-MM-DD
	Period int    `json:"period"` // 1..MaxPeriodsPerDay
}

// ClassInput 课程输入
type ClassInput struct {
	ID               string      `json:"id,omitempty"`
	Name             string      `json:"name"`
	GradeLevel       int         `json:"grade_level"`
	GradeGroup       string      `json:"grade_group,omitempty"`
	Teacher          string      `json:"teacher,omitempty"`
	TotalConflicts   []SlotInput `json:"total_conflicts,omitempty"`
	PartialConflicts []SlotInput `json:"partial_conflicts,omitempty"`
}

// ConstraintsInput 约束输入，零值字段使用默认配置
type ConstraintsInput struct {
	MaxPeriodsPerDay   int         `json:"max_periods_per_day,omitempty"`
	MaxPeriodsPerWeek  int         `json:"max_periods_per_week,omitempty"`
	MaxClassesPerDay   int         `json:"max_classes_per_day,omitempty"`
	ConsecutiveMaximum int         `json:"consecutive_maximum,omitempty"`
	RequireBreak       int         `json:"require_break,omitempty"`
	BlackoutPeriods    []SlotInput `json:"blackout_periods,omitempty"`
}

// PreferencesInput 偏好输入
type PreferencesInput struct {
	GradeGroups        map[string][]int `json:"grade_groups,omitempty"`
	PreferSameGradeDay bool             `json:"prefer_same_grade_in_day,omitempty"`
	GradeProgression   string           `json:"grade_progression,omitempty"` // none/low-to-high/high-to-low
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	TimeoutSeconds int                     `json:"timeout_seconds,omitempty"`
	WorkerCount    int                     `json:"worker_count,omitempty"`
	WindowDays     int                     `json:"window_days,omitempty"`
	Seed           int64                   `json:"seed,omitempty"`
	Anneal         *optimizer.AnnealConfig `json:"anneal,omitempty"`
	Weights        *score.Weights          `json:"weights,omitempty"`
}

// GenerateRequest 排课生成请求
type GenerateRequest struct {
	Name        string            `json:"name,omitempty"` // 非空时保存到数据库
	StartDate   string            `json:"start_date"`
	Classes     []ClassInput      `json:"classes"`
	Constraints *ConstraintsInput `json:"constraints,omitempty"`
	Preferences *PreferencesInput `json:"preferences,omitempty"`
	Options     *GenerateOptions  `json:"options,omitempty"`
}

// EntryOutput 课表条目输出
type EntryOutput struct {
	ClassID    string `json:"class_id"`
	ClassName  string `json:"class_name"`
	GradeLevel int    `json:"grade_level"`
	GradeGroup string `json:"grade_group,omitempty"`
	Teacher    string `json:"teacher,omitempty"`
	Date       string `json:"date"`
	Period     int    `json:"period"`
}

// ScoreOutput 评分输出
type ScoreOutput struct {
	TotalLength            float64 `json:"total_length"`
	GradeGroupCohesion     float64 `json:"grade_group_cohesion"`
	DistributionQuality    float64 `json:"distribution_quality"`
	GradeProgression       float64 `json:"grade_progression"`
	ConstraintViolations   int     `json:"constraint_violations"`
	PartialConflictPenalty float64 `json:"partial_conflict_penalty"`
	Aggregate              float64 `json:"aggregate"`
}

// GenerateResponse 排课生成响应
type GenerateResponse struct {
	Success        bool          `json:"success"`
	ScheduleID     string        `json:"schedule_id,omitempty"`
	StartDate      string        `json:"start_date"`
	EndDate        string        `json:"end_date"`
	Entries        []EntryOutput `json:"entries"`
	Unscheduled    []string      `json:"unscheduled,omitempty"` // 未排入的课程名称
	Score          *ScoreOutput  `json:"score,omitempty"`
	CompletionRate float64       `json:"completion_rate"`
	Duration       string        `json:"duration"`
}

// Generate 生成课表
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	if err := validateGenerateRequest(&req); err != nil {
		respondError(w, err)
		return
	}

	classes, appErr := buildClasses(req.Classes)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	constraints, blackouts := buildConstraints(req.Constraints)
	prefs, appErr := buildPreferences(req.Preferences)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	opts := scheduler.DefaultOptions()
	opts.WorkerCount = h.workerCount
	opts.WindowDays = h.windowDays
	opts.Seed = h.seed
	timeout := h.defaultTimeout
	if req.Options != nil {
		if req.Options.TimeoutSeconds > 0 {
			timeout = time.Duration(req.Options.TimeoutSeconds) * time.Second
		}
		if req.Options.WorkerCount > 0 {
			opts.WorkerCount = req.Options.WorkerCount
		}
		if req.Options.WindowDays > 0 {
			opts.WindowDays = req.Options.WindowDays
		}
		if req.Options.Seed != 0 {
			opts.Seed = req.Options.Seed
		}
		opts.Anneal = req.Options.Anneal
		opts.Weights = req.Options.Weights
	}

	solveCtx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	activeTasks := metrics.GetRegistry().GetGauge("paike_active_tasks")
	if activeTasks != nil {
		activeTasks.Inc()
		defer activeTasks.Dec()
	}

	start := time.Now()
	result, err := scheduler.GenerateSchedule(solveCtx, classes, req.StartDate, constraints, prefs, blackouts, opts)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordScheduleGeneration(false, elapsed, 0, 0)
		if errors.Is(err, errors.CodeTimeout) || solveCtx.Err() == context.DeadlineExceeded {
			respondError(w, errors.New(errors.CodeTimeout, "排课计算超时，请尝试减少课程数量或延长超时时间"))
			return
		}
		respondError(w, toAppError(err))
		return
	}
	metrics.RecordScheduleGeneration(true, elapsed, result.Score.Aggregate, result.CompletionRate())

	resp := GenerateResponse{
		Success:        true,
		StartDate:      result.StartDate,
		EndDate:        result.EndDate,
		Entries:        buildEntries(result),
		Unscheduled:    unscheduledNames(result),
		Score:          buildScoreOutput(result.Score),
		CompletionRate: result.CompletionRate(),
		Duration:       elapsed.String(),
	}

	// 按需持久化
	if req.Name != "" {
		if h.scheduleRepo == nil {
			respondError(w, errors.New(errors.CodeInternal, "持久化未启用，无法保存课表"))
			return
		}
		record, err := h.scheduleRepo.SaveGenerated(r.Context(), req.Name, result)
		if err != nil {
			respondError(w, toAppError(err))
			return
		}
		resp.ScheduleID = record.ID.String()
	}

	respondJSON(w, http.StatusOK, resp)
}

// validateGenerateRequest 验证请求
func validateGenerateRequest(req *GenerateRequest) *errors.AppError {
	ve := &errors.ValidationErrors{}

	if req.StartDate == "" {
		ve.Add("start_date", "开始日期不能为空")
	} else if _, err := model.ParseDate(req.StartDate); err != nil {
		ve.Add("start_date", "日期格式无效，应为YYYY-MM-DD")
	}
	if len(req.Classes) == 0 {
		ve.Add("classes", "课程列表不能为空")
	}
	for i, c := range req.Classes {
		if strings.TrimSpace(c.Name) == "" {
			ve.Add(fmt.Sprintf("classes[%d].name", i), "课程名称不能为空")
		}
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// buildClasses 构建课程模型
func buildClasses(inputs []ClassInput) ([]*model.ClassItem, *errors.AppError) {
	classes := make([]*model.ClassItem, 0, len(inputs))
	for i, in := range inputs {
		c := model.NewClassItem(in.Name, in.GradeLevel, in.GradeGroup)
		c.Teacher = in.Teacher
		if in.ID != "" {
			id, err := uuid.Parse(in.ID)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeInvalidInput,
					fmt.Sprintf("无效的课程ID格式: %s", in.ID))
			}
			c.ID = id
		}
		for _, s := range in.TotalConflicts {
			if _, err := model.ParseDate(s.Date); err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("classes[%d].total_conflicts", i), "日期格式无效")
			}
			c.TotalConflicts = append(c.TotalConflicts, model.SlotRef{Date: s.Date, Period: s.Period})
		}
		for _, s := range in.PartialConflicts {
			if _, err := model.ParseDate(s.Date); err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("classes[%d].partial_conflicts", i), "日期格式无效")
			}
			c.PartialConflicts = append(c.PartialConflicts, model.SlotRef{Date: s.Date, Period: s.Period})
		}
		classes = append(classes, c)
	}
	return classes, nil
}

// buildConstraints 构建约束配置，零值字段取默认值
func buildConstraints(in *ConstraintsInput) (*model.ScheduleConstraints, []model.SlotRef) {
	cons := model.DefaultConstraints()
	var blackouts []model.SlotRef
	if in == nil {
		return cons, nil
	}
	if in.MaxPeriodsPerDay > 0 {
		cons.MaxPeriodsPerDay = in.MaxPeriodsPerDay
	}
	if in.MaxPeriodsPerWeek > 0 {
		cons.MaxPeriodsPerWeek = in.MaxPeriodsPerWeek
	}
	if in.MaxClassesPerDay > 0 {
		cons.MaxClassesPerDay = in.MaxClassesPerDay
	}
	if in.ConsecutiveMaximum > 0 {
		cons.ConsecutivePeriods.Maximum = in.ConsecutiveMaximum
	}
	if in.RequireBreak > 0 {
		cons.ConsecutivePeriods.RequireBreak = in.RequireBreak
	}
	for _, s := range in.BlackoutPeriods {
		blackouts = append(blackouts, model.SlotRef{Date: s.Date, Period: s.Period})
	}
	return cons, blackouts
}

// buildPreferences 构建偏好配置
func buildPreferences(in *PreferencesInput) (*model.SchedulePreferences, *errors.AppError) {
	prefs := model.DefaultPreferences()
	if in == nil {
		return prefs, nil
	}
	if in.GradeGroups != nil {
		prefs.GradeGroups = in.GradeGroups
	}
	prefs.PreferSameGradeInDay = in.PreferSameGradeDay
	if in.GradeProgression != "" {
		switch model.GradeProgression(in.GradeProgression) {
		case model.ProgressionNone, model.ProgressionLowToHigh, model.ProgressionHighToLow:
			prefs.GradeProgression = model.GradeProgression(in.GradeProgression)
		default:
			return nil, errors.InvalidInput("grade_progression",
				"应为 none、low-to-high 或 high-to-low")
		}
	}
	return prefs, nil
}

// buildEntries 构建课表条目输出
func buildEntries(s *model.Schedule) []EntryOutput {
	entries := make([]EntryOutput, len(s.Classes))
	for i, sc := range s.Classes {
		entries[i] = EntryOutput{
			ClassID:    sc.Class.ID.String(),
			ClassName:  sc.Class.Name,
			GradeLevel: sc.Class.GradeLevel,
			GradeGroup: sc.Class.GradeGroup,
			Teacher:    sc.Class.Teacher,
			Date:       sc.Date,
			Period:     sc.Period,
		}
	}
	return entries
}

// unscheduledNames 收集未排入的课程名称
func unscheduledNames(s *model.Schedule) []string {
	var names []string
	for _, c := range s.UnscheduledClasses() {
		names = append(names, c.Name)
	}
	return names
}

// buildScoreOutput 构建评分输出
func buildScoreOutput(v *model.ScoreVector) *ScoreOutput {
	if v == nil {
		return nil
	}
	return &ScoreOutput{
		TotalLength:            v.TotalLength,
		GradeGroupCohesion:     v.GradeGroupCohesion,
		DistributionQuality:    v.DistributionQuality,
		GradeProgression:       v.GradeProgression,
		ConstraintViolations:   v.ConstraintViolations,
		PartialConflictPenalty: v.PartialConflictPenalty,
		Aggregate:              v.Aggregate,
	}
}

// ValidateRequest 课表验证请求
type ValidateRequest struct {
	StartDate   string            `json:"start_date"`
	Classes     []ClassInput      `json:"classes"`
	Entries     []EntryInput      `json:"entries"`
	Constraints *ConstraintsInput `json:"constraints,omitempty"`
}

// EntryInput 课表条目输入，通过课程名称关联
type EntryInput struct {
	ClassName string `json:"class_name"`
	Date      string `json:"date"`
	Period    int    `json:"period"`
}

// Validate 验证已有课表
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if len(req.Classes) == 0 {
		respondError(w, errors.InvalidInput("classes", "课程列表不能为空"))
		return
	}

	schedule, detector, appErr := h.buildScheduleFromRequest(req.StartDate, req.Classes, req.Entries, req.Constraints)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result := detector.Validate(schedule)
	respondJSON(w, http.StatusOK, result)
}

// buildScheduleFromRequest 从请求构建课表和检测器
func (h *ScheduleHandler) buildScheduleFromRequest(
	startDate string,
	classInputs []ClassInput,
	entries []EntryInput,
	consInput *ConstraintsInput,
) (*model.Schedule, *validator.ConflictDetector, *errors.AppError) {
	classes, appErr := buildClasses(classInputs)
	if appErr != nil {
		return nil, nil, appErr
	}
	for _, c := range classes {
		c.NormalizeConflicts()
	}

	constraints, blackouts := buildConstraints(consInput)
	engine, err := scheduler.NewEngine(constraints, nil, blackouts, nil)
	if err != nil {
		return nil, nil, toAppError(err)
	}

	byName := make(map[string]*model.ClassItem, len(classes))
	for _, c := range classes {
		byName[c.Name] = c
	}

	if startDate == "" && len(entries) > 0 {
		startDate = entries[0].Date
		for _, e := range entries {
			if e.Date < startDate {
				startDate = e.Date
			}
		}
	}

	schedule := model.NewSchedule(classes, startDate, constraints)
	for _, e := range entries {
		c, ok := byName[e.ClassName]
		if !ok {
			return nil, nil, errors.InvalidInput("entries",
				fmt.Sprintf("课程 '%s' 不在课程列表中", e.ClassName))
		}
		if _, err := model.ParseDate(e.Date); err != nil {
			return nil, nil, errors.InvalidInput("entries", "日期格式无效，应为YYYY-MM-DD")
		}
		schedule.AddClass(&model.ScheduledClass{Class: c, Date: e.Date, Period: e.Period})
	}

	return schedule, validator.NewConflictDetector(engine.Checker()), nil
}

// ExportRequest 课表导出请求
type ExportRequest struct {
	StartDate string       `json:"start_date"`
	Classes   []ClassInput `json:"classes"`
	Entries   []EntryInput `json:"entries"`
}

// Export 导出课表为CSV
func (h *ScheduleHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if len(req.Classes) == 0 {
		respondError(w, errors.InvalidInput("classes", "课程列表不能为空"))
		return
	}

	schedule, _, appErr := h.buildScheduleFromRequest(req.StartDate, req.Classes, req.Entries, nil)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	csv, err := csvio.ExportScheduleString(schedule)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=schedule.csv")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(csv))
}

// Get 查询已保存的课表
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	if h.scheduleRepo == nil {
		respondError(w, errors.New(errors.CodeInternal, "持久化未启用"))
		return
	}

	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		respondError(w, errors.InvalidInput("id", "课表ID不能为空"))
		return
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的课表ID格式"))
		return
	}

	record, err := h.scheduleRepo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	entries, err := h.scheduleRepo.GetEntries(r.Context(), id)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"schedule": record,
		"entries":  entries,
	})
}

// List 分页查询已保存的课表
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	if h.scheduleRepo == nil {
		respondError(w, errors.New(errors.CodeInternal, "持久化未启用"))
		return
	}

	filter := repository.DefaultListFilter()
	if status := r.URL.Query().Get("status"); status != "" {
		filter = filter.WithStatus(status)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter = filter.WithSearch(search)
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}

	records, total, err := h.scheduleRepo.List(r.Context(), filter)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  records,
		"total":  total,
		"offset": filter.Offset,
		"limit":  filter.Limit,
	})
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}

// toAppError 将任意错误转换为AppError
func toAppError(err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, "内部错误")
}
