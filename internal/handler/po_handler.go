package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ordertrail/potrack/internal/service"
)

// POHandler 采购订单处理器
type POHandler struct {
	svc *service.OrderService
}

func NewPOHandler(svc *service.OrderService) *POHandler {
	return &POHandler{svc: svc}
}

// ListPOs 采购订单列表
// GET /api/v1/purchase-orders?status=xxx&party=xxx&search=xxx
func (h *POHandler) ListPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status": c.Query("status"),
		"party":  c.Query("party"),
		"search": c.Query("search"),
	}

	pos := h.svc.ListPOs(filters)
	pageItems, pagination := Paginate(pos, page, pageSize)

	Success(c, ListResponse{
		Items:      pageItems,
		Pagination: pagination,
	})
}

// GetPO 采购订单详情
// GET /api/v1/purchase-orders/:id
func (h *POHandler) GetPO(c *gin.Context) {
	po, err := h.svc.GetPO(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, po)
}

// CreatePO 创建采购订单
// POST /api/v1/purchase-orders
func (h *POHandler) CreatePO(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.CreatePO(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, po)
}

// UpdatePO 编辑采购订单
// PUT /api/v1/purchase-orders/:id
func (h *POHandler) UpdatePO(c *gin.Context) {
	var req service.UpdatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.UpdatePO(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, po)
}

// CancelPO 作废采购订单
// POST /api/v1/purchase-orders/:id/cancel
func (h *POHandler) CancelPO(c *gin.Context) {
	po, err := h.svc.CancelPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, po)
}

// RevisePO 修订作废订单（生成新单）
// POST /api/v1/purchase-orders/:id/revise
func (h *POHandler) RevisePO(c *gin.Context) {
	po, err := h.svc.RevisePO(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, po)
}
