package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ordertrail/potrack/internal/service"
)

// ReportHandler 发货报表处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// parseRange 优先取查询参数，缺省回落到持久化的过滤边界
func (h *ReportHandler) parseRange(c *gin.Context) (service.DateRange, error) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" && to == "" {
		from, to = h.svc.DateFilter()
	}
	return service.ParseDateRange(from, to)
}

// GetReport 发货报表（JSON聚合）
// GET /api/v1/reports/dispatches?from=2026-01-01&to=2026-01-31
func (h *ReportHandler) GetReport(c *gin.Context) {
	rng, err := h.parseRange(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, h.svc.Generate(rng))
}

// ExportReport 导出发货报表
// GET /api/v1/reports/dispatches/export?format=csv|xlsx
func (h *ReportHandler) ExportReport(c *gin.Context) {
	rng, err := h.parseRange(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	summary := h.svc.Generate(rng)

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		f, filename, err := h.svc.ExportXLSX(summary)
		if err != nil {
			InternalError(c, "导出失败: "+err.Error())
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			InternalError(c, "导出失败: "+err.Error())
		}
	case "csv":
		var buf bytes.Buffer
		if err := h.svc.WriteCSV(&buf, summary); err != nil {
			InternalError(c, "导出失败: "+err.Error())
			return
		}
		filename := fmt.Sprintf("dispatch_report_%s.csv", time.Now().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	default:
		BadRequest(c, "format 仅支持 csv 或 xlsx")
	}
}

// DateFilterPayload 日期过滤边界
type DateFilterPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GetDateFilter 读取持久化的日期过滤边界
// GET /api/v1/reports/date-filter
func (h *ReportHandler) GetDateFilter(c *gin.Context) {
	from, to := h.svc.DateFilter()
	Success(c, DateFilterPayload{From: from, To: to})
}

// SetDateFilter 保存日期过滤边界
// PUT /api/v1/reports/date-filter
func (h *ReportHandler) SetDateFilter(c *gin.Context) {
	var req DateFilterPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetDateFilter(c.Request.Context(), req.From, req.To); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, DateFilterPayload{From: req.From, To: req.To})
}
