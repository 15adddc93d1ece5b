package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ordertrail/potrack/internal/entity"
	"go.uber.org/zap"
)

// DispatchItemInput 发货行项入参
type DispatchItemInput struct {
	Material string  `json:"material" binding:"required"`
	Quantity float64 `json:"quantity"`
}

// CreateDispatchRequest 新建发货请求
type CreateDispatchRequest struct {
	POID            string              `json:"po_id" binding:"required"`
	VehicleNumber   string              `json:"vehicle_number" binding:"required"`
	DriverContact   string              `json:"driver_contact"`
	InvoiceNumber   string              `json:"invoice_number"`
	TransporterName string              `json:"transporter_name"`
	DispatchedAt    time.Time           `json:"dispatched_at" binding:"required"`
	Items           []DispatchItemInput `json:"items" binding:"required"`
}

// UpdateDispatchRequest 编辑发货请求，覆盖语义。
// 全部行项数量改为0即作废该发货单。
type UpdateDispatchRequest struct {
	VehicleNumber   string              `json:"vehicle_number" binding:"required"`
	DriverContact   string              `json:"driver_contact"`
	InvoiceNumber   string              `json:"invoice_number"`
	TransporterName string              `json:"transporter_name"`
	DispatchedAt    time.Time           `json:"dispatched_at" binding:"required"`
	Items           []DispatchItemInput `json:"items" binding:"required"`
}

// newDispatchID 发货单ID：发货日期 + 随机后缀
func newDispatchID(dispatchedAt time.Time) string {
	return fmt.Sprintf("D%s-%s", dispatchedAt.Format("20060102"), uuid.New().String()[:8])
}

// buildDispatchItems 校验并规范化发货行项。数量为0的行静默丢弃，
// 数量为负报校验错误。
func buildDispatchItems(inputs []DispatchItemInput) ([]entity.DispatchItem, error) {
	var items []entity.DispatchItem
	for _, in := range inputs {
		material := entity.CanonicalMaterial(in.Material)
		if material == "" {
			return nil, fmt.Errorf("%w: 物料名不能为空", ErrValidation)
		}
		if in.Quantity < 0 {
			return nil, fmt.Errorf("%w: 物料 %s 数量不能为负", ErrValidation, material)
		}
		if in.Quantity == 0 {
			continue
		}
		items = append(items, entity.DispatchItem{Material: material, Quantity: in.Quantity})
	}
	return items, nil
}

// AddDispatch 对非终态订单记一笔发货。发货量不按订单余量封顶，
// 允许超发（实际业务存在超供）。
func (s *OrderService) AddDispatch(ctx context.Context, req *CreateDispatchRequest) (*entity.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po := s.store.FindPO(req.POID)
	if po == nil {
		return nil, fmt.Errorf("采购订单 %s: %w", req.POID, ErrNotFound)
	}
	if po.Status == entity.POStatusCompleted || po.Status == entity.POStatusCancelled {
		return nil, fmt.Errorf("%w: %s 状态的订单不能发货", ErrInvalidState, po.Status)
	}

	if strings.TrimSpace(req.VehicleNumber) == "" {
		return nil, fmt.Errorf("%w: 车牌号不能为空", ErrValidation)
	}
	items, err := buildDispatchItems(req.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: 发货数量合计为0", ErrEmptyDispatch)
	}

	now := time.Now()
	d := &entity.Dispatch{
		ID:              newDispatchID(req.DispatchedAt),
		POID:            po.ID,
		VehicleNumber:   normalizeField(req.VehicleNumber),
		DriverContact:   strings.TrimSpace(req.DriverContact),
		InvoiceNumber:   strings.TrimSpace(req.InvoiceNumber),
		TransporterName: normalizeField(req.TransporterName),
		Items:           items,
		DispatchedAt:    req.DispatchedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.InsertDispatch(ctx, d); err != nil {
		return nil, fmt.Errorf("创建发货单失败: %w", err)
	}

	s.reconcile(ctx, po)

	s.logger.Info("Dispatch recorded",
		zap.String("dispatch_id", d.ID),
		zap.String("po_id", po.ID),
		zap.Float64("total_qty", d.TotalQuantity()),
		zap.String("po_status", po.Status),
	)
	return d, nil
}

// UpdateDispatch 编辑发货单的行项与运输信息。所属订单已作废则拒绝。
func (s *OrderService) UpdateDispatch(ctx context.Context, id string, req *UpdateDispatchRequest) (*entity.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.store.FindDispatch(id)
	if d == nil {
		return nil, fmt.Errorf("发货单 %s: %w", id, ErrNotFound)
	}
	po := s.store.FindPO(d.POID)
	if po == nil {
		return nil, fmt.Errorf("发货单 %s 所属订单 %s: %w", id, d.POID, ErrNotFound)
	}
	if po.Status == entity.POStatusCancelled {
		return nil, fmt.Errorf("%w: 作废订单的发货单不可编辑", ErrInvalidState)
	}

	if strings.TrimSpace(req.VehicleNumber) == "" {
		return nil, fmt.Errorf("%w: 车牌号不能为空", ErrValidation)
	}
	// 允许净数量为0：这是作废发货单的唯一途径
	items, err := buildDispatchItems(req.Items)
	if err != nil {
		return nil, err
	}

	d.VehicleNumber = normalizeField(req.VehicleNumber)
	d.DriverContact = strings.TrimSpace(req.DriverContact)
	d.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	d.TransporterName = normalizeField(req.TransporterName)
	d.Items = items
	d.DispatchedAt = req.DispatchedAt
	d.UpdatedAt = time.Now()

	if err := s.store.SaveDispatch(ctx, d); err != nil {
		return nil, fmt.Errorf("更新发货单失败: %w", err)
	}

	s.reconcile(ctx, po)

	s.logger.Info("Dispatch updated",
		zap.String("dispatch_id", d.ID),
		zap.String("po_id", po.ID),
		zap.String("po_status", po.Status),
	)
	return d, nil
}

// reconcile 发货明细变动后的对账：从零重算累计已发数量并重推状态。
func (s *OrderService) reconcile(ctx context.Context, po *entity.PurchaseOrder) {
	recomputeDispatched(po, s.store.FindDispatchesByPO(po.ID))
	deriveStatus(po)
	po.UpdatedAt = time.Now()
	if err := s.store.SavePO(ctx, po); err != nil {
		s.logger.Error("Failed to save reconciled purchase order",
			zap.String("po_id", po.ID), zap.Error(err))
	}
}

// GetDispatch 发货单详情
func (s *OrderService) GetDispatch(id string) (*entity.Dispatch, error) {
	d := s.store.FindDispatch(id)
	if d == nil {
		return nil, fmt.Errorf("发货单 %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// ListDispatchesByPO 某订单下全部发货单
func (s *OrderService) ListDispatchesByPO(poID string) ([]*entity.Dispatch, error) {
	if s.store.FindPO(poID) == nil {
		return nil, fmt.Errorf("采购订单 %s: %w", poID, ErrNotFound)
	}
	return s.store.FindDispatchesByPO(poID), nil
}
