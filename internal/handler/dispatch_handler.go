package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ordertrail/potrack/internal/service"
)

// DispatchHandler 发货单处理器
type DispatchHandler struct {
	svc *service.OrderService
}

func NewDispatchHandler(svc *service.OrderService) *DispatchHandler {
	return &DispatchHandler{svc: svc}
}

// ListByPO 某订单下的发货单列表
// GET /api/v1/purchase-orders/:id/dispatches
func (h *DispatchHandler) ListByPO(c *gin.Context) {
	dispatches, err := h.svc.ListDispatchesByPO(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, dispatches)
}

// GetDispatch 发货单详情
// GET /api/v1/dispatches/:id
func (h *DispatchHandler) GetDispatch(c *gin.Context) {
	d, err := h.svc.GetDispatch(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, d)
}

// CreateDispatch 新建发货单
// POST /api/v1/dispatches
func (h *DispatchHandler) CreateDispatch(c *gin.Context) {
	var req service.CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	d, err := h.svc.AddDispatch(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, d)
}

// UpdateDispatch 编辑发货单
// PUT /api/v1/dispatches/:id
func (h *DispatchHandler) UpdateDispatch(c *gin.Context) {
	var req service.UpdateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	d, err := h.svc.UpdateDispatch(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, d)
}
