package server

import (
	"errors"
	"fmt"
	"net/http"

	"campus-access/internal/apiserver/report"
	"campus-access/internal/apiserver/suggest"
)

type suggestionRequest struct {
	Justification string `json:"justification"`
}

// KPIs 看板指标（基于调用方可见的申请）
//
// 路由: GET /api/v1/kpis
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	k, err := h.lifecycle.KPIs(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, r, "kpis", err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// SuggestBuilding 根据说明推荐楼栋
//
// 路由: POST /api/v1/suggestions/building
// 说明不超过 20 个字符时不推荐，返回空字符串；推荐服务失败返回 502。
func (h *Handler) SuggestBuilding(w http.ResponseWriter, r *http.Request) {
	if currentUser(w, r) == nil {
		return
	}
	var body suggestionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if !suggest.ShouldSuggest(body.Justification) {
		h.metrics.SuggestionsTotal.WithLabelValues("skipped").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"building_suggestion": ""})
		return
	}

	building, err := h.suggester.Suggest(r.Context(), body.Justification)
	if err != nil {
		h.metrics.SuggestionsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, suggest.ErrExternalService) {
			err = fmt.Errorf("%w: %v", suggest.ErrExternalService, err)
		}
		h.log.WithContext(r.Context()).WithError(err).Warn("Building suggestion failed")
		h.writeDomainError(w, r, "suggest", err)
		return
	}
	h.metrics.SuggestionsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"building_suggestion": building})
}

// ApprovedAccessReport 导出调用方所辖楼栋内已批准申请的 CSV
//
// 路由: GET /api/v1/reports/approved-access
//
// 仅 approver/admin 可用。没有数据时返回 404 与提示信息。
// 配置了归档时同时上传到对象存储，对象键写入 X-Report-Archive-Key 响应头；
// 归档失败只记录日志，不影响下载。
func (h *Handler) ApprovedAccessReport(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	if !user.Role.ManagesBuildings() {
		writeError(w, http.StatusForbidden, "authorization denied")
		return
	}

	ctx := r.Context()
	requests, err := h.store.ListRequests(ctx)
	if err != nil {
		h.writeDomainError(w, r, "report", err)
		return
	}
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		h.writeDomainError(w, r, "report", err)
		return
	}

	rep := report.ApprovedAccess(requests, users, user, h.now())
	data, err := rep.CSV()
	if err != nil {
		h.writeDomainError(w, r, "report", err)
		return
	}

	archived := "false"
	if h.archive != nil {
		key, err := h.archive.PutReport(ctx, rep.Filename, data)
		if err != nil {
			h.log.WithContext(ctx).WithError(err).Warn("Report archive failed", "filename", rep.Filename)
		} else {
			archived = "true"
			w.Header().Set("X-Report-Archive-Key", key)
		}
	}
	h.metrics.ReportsExported.WithLabelValues(archived).Inc()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
