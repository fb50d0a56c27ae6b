package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestHandler() *ScheduleHandler {
	return NewScheduleHandler(nil, 30*time.Second, 2, 7, 42)
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handlerFunc(w, req)
	return w
}

func TestGenerate_Success(t *testing.T) {
	h := newTestHandler()
	w := postJSON(t, h.Generate, GenerateRequest{
		StartDate: "2026-03-02",
		Classes: []ClassInput{
			{Name: "语文", GradeLevel: 1},
			{Name: "数学", GradeLevel: 2},
			{Name: "英语", GradeLevel: 3},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if !resp.Success {
		t.Error("success 应为 true")
	}
	if len(resp.Entries) != 3 {
		t.Errorf("应排入3门课程, got %d: %+v", len(resp.Entries), resp.Unscheduled)
	}
	if resp.CompletionRate != 1.0 {
		t.Errorf("排入率应为1.0, got %v", resp.CompletionRate)
	}
	if resp.Score == nil || resp.Score.ConstraintViolations != 0 {
		t.Errorf("评分异常: %+v", resp.Score)
	}
	if resp.ScheduleID != "" {
		t.Error("未指定名称时不应持久化")
	}
}

func TestGenerate_MethodNotAllowed(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.Generate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("GET 应返回400, got %d", w.Code)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	h := newTestHandler()
	w := postJSON(t, h.Generate, GenerateRequest{
		StartDate: "2026/03/02",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error  bool              `json:"error"`
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %s", body.Code)
	}
	if _, ok := body.Fields["start_date"]; !ok {
		t.Errorf("缺少 start_date 字段错误: %+v", body.Fields)
	}
	if _, ok := body.Fields["classes"]; !ok {
		t.Errorf("缺少 classes 字段错误: %+v", body.Fields)
	}
}

func TestGenerate_InvalidProgression(t *testing.T) {
	h := newTestHandler()
	w := postJSON(t, h.Generate, GenerateRequest{
		StartDate:   "2026-03-02",
		Classes:     []ClassInput{{Name: "语文", GradeLevel: 1}},
		Preferences: &PreferencesInput{GradeProgression: "upward"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法递进取值应返回400, got %d", w.Code)
	}
}

func TestValidate_DetectsDoubleBooking(t *testing.T) {
	h := newTestHandler()
	w := postJSON(t, h.Validate, ValidateRequest{
		StartDate: "2026-03-02",
		Classes: []ClassInput{
			{Name: "语文", GradeLevel: 1},
			{Name: "数学", GradeLevel: 1},
		},
		Entries: []EntryInput{
			{ClassName: "语文", Date: "2026-03-02", Period: 1},
			{ClassName: "数学", Date: "2026-03-02", Period: 1},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var result struct {
		Valid     bool `json:"valid"`
		Conflicts []struct {
			Type string `json:"type"`
		} `json:"conflicts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("时段重复占用应判定为无效")
	}
	found := false
	for _, c := range result.Conflicts {
		if c.Type == "double_booking" {
			found = true
		}
	}
	if !found {
		t.Errorf("应报告 double_booking: %+v", result.Conflicts)
	}
}

func TestValidate_UnknownClassName(t *testing.T) {
	h := newTestHandler()
	w := postJSON(t, h.Validate, ValidateRequest{
		StartDate: "2026-03-02",
		Classes:   []ClassInput{{Name: "语文", GradeLevel: 1}},
		Entries:   []EntryInput{{ClassName: "化学", Date: "2026-03-02", Period: 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("未知课程名称应返回400, got %d", w.Code)
	}
}

func TestExport_CSV(t *testing.T) {
	h := newTestHandler()
	w := postJSON(t, h.Export, ExportRequest{
		StartDate: "2026-03-02",
		Classes:   []ClassInput{{Name: "语文", GradeLevel: 1}},
		Entries:   []EntryInput{{ClassName: "语文", Date: "2026-03-02", Period: 1}},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "schedule.csv") {
		t.Errorf("Content-Disposition = %s", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "date,period,class_name,grade_level,grade_group,teacher" {
		t.Errorf("CSV 内容错误: %q", w.Body.String())
	}
}

func TestGet_PersistenceDisabled(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?id=00000000-0000-0000-0000-000000000000", nil)
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("未启用持久化应返回500, got %d", w.Code)
	}
}
