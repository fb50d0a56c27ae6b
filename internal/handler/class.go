package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/paike/paike/internal/csvio"
	"github.com/paike/paike/internal/repository"
	"github.com/paike/paike/pkg/errors"
)

// ClassHandler 课程目录处理器
type ClassHandler struct {
	classRepo repository.ClassRepositoryInterface
}

// NewClassHandler 创建课程目录处理器
func NewClassHandler(repo repository.ClassRepositoryInterface) *ClassHandler {
	return &ClassHandler{classRepo: repo}
}

// Classes 课程集合端点: GET 列表 / POST 创建
func (h *ClassHandler) Classes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET和POST方法"))
	}
}

// Class 单个课程端点: GET 查询 / PUT 更新 / DELETE 删除
func (h *ClassHandler) Class(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseIDParam(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	switch r.Method {
	case http.MethodGet:
		class, err := h.classRepo.GetByID(r.Context(), id)
		if err != nil {
			respondError(w, toAppError(err))
			return
		}
		respondJSON(w, http.StatusOK, class)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		if err := h.classRepo.Delete(r.Context(), id); err != nil {
			respondError(w, toAppError(err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	default:
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET、PUT和DELETE方法"))
	}
}

func (h *ClassHandler) create(w http.ResponseWriter, r *http.Request) {
	var in ClassInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	classes, appErr := buildClasses([]ClassInput{in})
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	class := classes[0]
	class.NormalizeConflicts()

	if err := h.classRepo.Create(r.Context(), class); err != nil {
		respondError(w, toAppError(err))
		return
	}
	respondJSON(w, http.StatusCreated, class)
}

func (h *ClassHandler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var in ClassInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	classes, appErr := buildClasses([]ClassInput{in})
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	class := classes[0]
	class.ID = id
	class.NormalizeConflicts()

	if err := h.classRepo.Update(r.Context(), class); err != nil {
		respondError(w, toAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, class)
}

func (h *ClassHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := repository.DefaultListFilter()
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

	classes, total, err := h.classRepo.List(r.Context(), filter)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  classes,
		"total":  total,
		"offset": filter.Offset,
		"limit":  filter.Limit,
	})
}

// Import CSV批量导入课程, 表单字段名为 file
func (h *ClassHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "读取上传文件失败"))
		return
	}
	defer file.Close()

	tmpDir, err := os.MkdirTemp("", "paike-import")
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "创建临时目录失败"))
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, "classes.csv")
	tmp, err := os.Create(tmpPath)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "创建临时文件失败"))
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		respondError(w, errors.Wrap(err, errors.CodeInternal, "保存上传文件失败"))
		return
	}
	tmp.Close()

	classes, err := csvio.LoadClasses(tmpPath)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	created := 0
	for _, class := range classes {
		if err := h.classRepo.Create(r.Context(), class); err != nil {
			respondError(w, toAppError(err))
			return
		}
		created++
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"created": created,
	})
}

// parseIDParam 解析查询参数中的UUID
func parseIDParam(r *http.Request) (uuid.UUID, *errors.AppError) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		return uuid.Nil, errors.InvalidInput("id", "ID不能为空")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CodeInvalidInput, "无效的ID格式")
	}
	return id, nil
}
