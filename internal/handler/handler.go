package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ordertrail/potrack/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	PO       *POHandler
	Dispatch *DispatchHandler
	Report   *ReportHandler
	Material *MaterialHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(orderSvc *service.OrderService, reportSvc *service.ReportService) *Handlers {
	return &Handlers{
		PO:       NewPOHandler(orderSvc),
		Dispatch: NewDispatchHandler(orderSvc),
		Report:   NewReportHandler(reportSvc),
		Material: NewMaterialHandler(orderSvc),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError 引擎错误类别到响应码的统一映射
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrEmptyDispatch):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrQuantityViolation):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// Paginate 内存分页，返回当前页切片与分页信息
func Paginate[T any](items []T, page, pageSize int) ([]T, *Pagination) {
	total := len(items)
	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return items[start:end], &Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
