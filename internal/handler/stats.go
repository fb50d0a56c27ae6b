package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paike/paike/pkg/errors"
	"github.com/paike/paike/pkg/stats"
)

// StatsRequest 统计请求
type StatsRequest struct {
	StartDate   string            `json:"start_date"`
	Classes     []ClassInput      `json:"classes"`
	Entries     []EntryInput      `json:"entries"`
	Preferences *PreferencesInput `json:"preferences,omitempty"`
}

// DistributionResponse 分布统计响应
type DistributionResponse struct {
	Success bool                       `json:"success"`
	Data    *stats.DistributionMetrics `json:"data,omitempty"`
}

// Distribution 课表负载分布分析
func (h *ScheduleHandler) Distribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StatsRequest
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

	prefs, appErr := buildPreferences(req.Preferences)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	analyzer := stats.NewDistributionAnalyzer(prefs)
	respondJSON(w, http.StatusOK, DistributionResponse{
		Success: true,
		Data:    analyzer.Analyze(schedule),
	})
}
