package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ordertrail/potrack/internal/service"
)

// MaterialHandler 物料参考列表处理器
type MaterialHandler struct {
	svc *service.OrderService
}

func NewMaterialHandler(svc *service.OrderService) *MaterialHandler {
	return &MaterialHandler{svc: svc}
}

// ListMaterials 物料联想列表（随订单录入自动扩充）
// GET /api/v1/materials
func (h *MaterialHandler) ListMaterials(c *gin.Context) {
	Success(c, h.svc.Materials())
}
