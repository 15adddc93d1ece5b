package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ordertrail/potrack/internal/entity"
	"github.com/ordertrail/potrack/internal/ledger"
	"go.uber.org/zap"
)

// OrderService 采购订单与发货对账引擎。台账集合由本服务独占，
// 公开操作经mu串行化，每个操作先校验后落账，效果上是原子的。
type OrderService struct {
	mu     sync.Mutex
	store  *ledger.Store
	logger *zap.Logger
}

func NewOrderService(store *ledger.Store, logger *zap.Logger) *OrderService {
	return &OrderService{store: store, logger: logger}
}

// POItemInput 订单行项入参
type POItemInput struct {
	Material       string  `json:"material" binding:"required"`
	Quantity       float64 `json:"quantity" binding:"required"`
	Rate           float64 `json:"rate"`
	TaxRatePercent float64 `json:"tax_rate_percent"`
}

// CreatePORequest 创建采购订单请求
type CreatePORequest struct {
	ExternalRef string        `json:"external_ref"`
	Party       string        `json:"party" binding:"required"`
	Site        string        `json:"site"`
	Destination string        `json:"destination"`
	Salesman    string        `json:"salesman"`
	Items       []POItemInput `json:"items" binding:"required"`
}

// UpdatePORequest 编辑采购订单请求，覆盖语义
type UpdatePORequest struct {
	ExternalRef string        `json:"external_ref"`
	Party       string        `json:"party" binding:"required"`
	Site        string        `json:"site"`
	Destination string        `json:"destination"`
	Salesman    string        `json:"salesman"`
	Items       []POItemInput `json:"items" binding:"required"`
}

// normalizeField 自由文本字段统一去空格+大写
func normalizeField(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// buildItems 校验并规范化行项入参
func buildItems(inputs []POItemInput) ([]entity.MaterialLine, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: 至少需要一个行项", ErrValidation)
	}

	items := make([]entity.MaterialLine, 0, len(inputs))
	for _, in := range inputs {
		material := entity.CanonicalMaterial(in.Material)
		if material == "" {
			return nil, fmt.Errorf("%w: 物料名不能为空", ErrValidation)
		}
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: 物料 %s 数量必须大于0", ErrValidation, material)
		}
		if in.Rate < 0 {
			return nil, fmt.Errorf("%w: 物料 %s 单价不能为负", ErrValidation, material)
		}
		if !entity.ValidTaxRate(in.TaxRatePercent) {
			return nil, fmt.Errorf("%w: 物料 %s 税率 %.0f%% 不是合法档位", ErrValidation, material, in.TaxRatePercent)
		}
		items = append(items, entity.MaterialLine{
			Material:       material,
			Quantity:       in.Quantity,
			Rate:           in.Rate,
			TaxRatePercent: in.TaxRatePercent,
		})
	}
	return items, nil
}

// orderTotal 全部行项含税合计
func orderTotal(items []entity.MaterialLine) float64 {
	var total float64
	for _, line := range items {
		total += CalculateLine(line.Quantity, line.Rate, line.TaxRatePercent).LineTotal
	}
	return total
}

// deriveStatus 由行项与累计已发数量推导订单状态。作废为终态，短路返回。
// 顺带把行项物料缺失的计数键补为0，保证后续求和有定义。
// 超发（已发>订购）视为该行已满足，不是错误。
func deriveStatus(po *entity.PurchaseOrder) {
	if po.Status == entity.POStatusCancelled {
		return
	}
	if po.DispatchedQty == nil {
		po.DispatchedQty = make(map[string]float64)
	}

	allSatisfied := true
	for _, line := range po.Items {
		key := entity.CanonicalMaterial(line.Material)
		if _, ok := po.DispatchedQty[key]; !ok {
			po.DispatchedQty[key] = 0
		}
		if po.DispatchedQty[key] < line.Quantity {
			allSatisfied = false
		}
	}

	var total float64
	for _, q := range po.DispatchedQty {
		total += q
	}

	switch {
	case allSatisfied:
		po.Status = entity.POStatusCompleted
	case total > 0:
		po.Status = entity.POStatusPartial
	default:
		po.Status = entity.POStatusPending
	}
}

// recomputeDispatched 以该订单全部发货单从零重算累计已发数量。
// 不做增量加减，编辑发货单也不会让计数与明细之和漂移。
func recomputeDispatched(po *entity.PurchaseOrder, dispatches []*entity.Dispatch) {
	counters := make(map[string]float64, len(po.Items))
	for _, line := range po.Items {
		counters[entity.CanonicalMaterial(line.Material)] = 0
	}
	for _, d := range dispatches {
		for _, item := range d.Items {
			counters[entity.CanonicalMaterial(item.Material)] += item.Quantity
		}
	}
	po.DispatchedQty = counters
}

// CreatePO 创建采购订单
func (s *OrderService) CreatePO(ctx context.Context, req *CreatePORequest) (*entity.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(req.Party) == "" {
		return nil, fmt.Errorf("%w: 客户不能为空", ErrValidation)
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	po := &entity.PurchaseOrder{
		ID:            s.store.NextPOID(),
		ExternalRef:   strings.TrimSpace(req.ExternalRef),
		Party:         normalizeField(req.Party),
		Site:          normalizeField(req.Site),
		Destination:   normalizeField(req.Destination),
		Salesman:      normalizeField(req.Salesman),
		Items:         items,
		Status:        entity.POStatusPending,
		TotalAmount:   orderTotal(items),
		DispatchedQty: make(map[string]float64, len(items)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range items {
		po.DispatchedQty[line.Material] = 0
	}

	if err := s.store.InsertPO(ctx, po); err != nil {
		return nil, fmt.Errorf("创建采购订单失败: %w", err)
	}
	for _, line := range items {
		s.store.EnsureMaterial(ctx, line.Material)
	}

	s.logger.Info("Purchase order created",
		zap.String("po_id", po.ID),
		zap.String("party", po.Party),
		zap.Int("items", len(po.Items)),
	)
	return po, nil
}

// UpdatePO 编辑采购订单。作废单不可编辑（走修订）。
// 已有发货量的物料不允许降到已发数量以下，也不允许整行删除。
func (s *OrderService) UpdatePO(ctx context.Context, id string, req *UpdatePORequest) (*entity.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po := s.store.FindPO(id)
	if po == nil {
		return nil, fmt.Errorf("采购订单 %s: %w", id, ErrNotFound)
	}
	if po.Status == entity.POStatusCancelled {
		return nil, fmt.Errorf("%w: 作废订单不可编辑，请使用修订", ErrInvalidState)
	}

	if strings.TrimSpace(req.Party) == "" {
		return nil, fmt.Errorf("%w: 客户不能为空", ErrValidation)
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	// 已发数量守卫
	ordered := make(map[string]float64, len(items))
	for _, line := range items {
		ordered[line.Material] += line.Quantity
	}
	for material, dispatched := range po.DispatchedQty {
		if dispatched <= 0 {
			continue
		}
		qty, ok := ordered[material]
		if !ok {
			return nil, fmt.Errorf("%w: 物料 %s 已发货 %.2f，不能删除该行", ErrQuantityViolation, material, dispatched)
		}
		if qty < dispatched {
			return nil, fmt.Errorf("%w: 物料 %s 订购量 %.2f 低于已发量 %.2f", ErrQuantityViolation, material, qty, dispatched)
		}
	}

	po.ExternalRef = strings.TrimSpace(req.ExternalRef)
	po.Party = normalizeField(req.Party)
	po.Site = normalizeField(req.Site)
	po.Destination = normalizeField(req.Destination)
	po.Salesman = normalizeField(req.Salesman)
	po.Items = items
	po.TotalAmount = orderTotal(items)
	po.UpdatedAt = time.Now()

	recomputeDispatched(po, s.store.FindDispatchesByPO(po.ID))
	deriveStatus(po)

	if err := s.store.SavePO(ctx, po); err != nil {
		return nil, fmt.Errorf("更新采购订单失败: %w", err)
	}
	for _, line := range items {
		s.store.EnsureMaterial(ctx, line.Material)
	}

	s.logger.Info("Purchase order updated",
		zap.String("po_id", po.ID),
		zap.String("status", po.Status),
	)
	return po, nil
}

// CancelPO 作废采购订单。已完成订单同样允许作废；
// 既有发货单保留，但不再进入报表。
func (s *OrderService) CancelPO(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po := s.store.FindPO(id)
	if po == nil {
		return nil, fmt.Errorf("采购订单 %s: %w", id, ErrNotFound)
	}
	if po.Status == entity.POStatusCancelled {
		return nil, fmt.Errorf("%w: 订单已作废", ErrInvalidState)
	}

	po.Status = entity.POStatusCancelled
	po.UpdatedAt = time.Now()

	if err := s.store.SavePO(ctx, po); err != nil {
		return nil, fmt.Errorf("作废采购订单失败: %w", err)
	}

	s.logger.Info("Purchase order cancelled", zap.String("po_id", po.ID))
	return po, nil
}

// RevisePO 以作废订单为底稿另起新单：新ID、新创建时间、
// 状态回到待发、发货计数清零。源订单不动。
func (s *OrderService) RevisePO(ctx context.Context, cancelledID string) (*entity.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.store.FindPO(cancelledID)
	if src == nil {
		return nil, fmt.Errorf("采购订单 %s: %w", cancelledID, ErrNotFound)
	}
	if src.Status != entity.POStatusCancelled {
		return nil, fmt.Errorf("%w: 只有作废订单可以修订", ErrInvalidState)
	}

	now := time.Now()
	po := &entity.PurchaseOrder{
		ID:            s.store.NextPOID(),
		ExternalRef:   src.ExternalRef,
		Party:         src.Party,
		Site:          src.Site,
		Destination:   src.Destination,
		Salesman:      src.Salesman,
		Items:         append([]entity.MaterialLine(nil), src.Items...),
		Status:        entity.POStatusPending,
		TotalAmount:   orderTotal(src.Items),
		DispatchedQty: make(map[string]float64, len(src.Items)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range po.Items {
		po.DispatchedQty[line.Material] = 0
	}

	if err := s.store.InsertPO(ctx, po); err != nil {
		return nil, fmt.Errorf("修订采购订单失败: %w", err)
	}

	s.logger.Info("Purchase order revised",
		zap.String("source_po_id", cancelledID),
		zap.String("po_id", po.ID),
	)
	return po, nil
}

// GetPO 订单详情
func (s *OrderService) GetPO(id string) (*entity.PurchaseOrder, error) {
	po := s.store.FindPO(id)
	if po == nil {
		return nil, fmt.Errorf("采购订单 %s: %w", id, ErrNotFound)
	}
	return po, nil
}

// ListPOs 订单列表，支持状态/客户/关键字内存过滤
func (s *OrderService) ListPOs(filters map[string]string) []*entity.PurchaseOrder {
	pos := s.store.ListPOs()

	status := filters["status"]
	party := normalizeField(filters["party"])
	search := normalizeField(filters["search"])

	out := pos[:0]
	for _, po := range pos {
		if status != "" && po.Status != status {
			continue
		}
		if party != "" && po.Party != party {
			continue
		}
		if search != "" && !matchPO(po, search) {
			continue
		}
		out = append(out, po)
	}
	return out
}

func matchPO(po *entity.PurchaseOrder, needle string) bool {
	if strings.Contains(po.ID, needle) ||
		strings.Contains(strings.ToUpper(po.ExternalRef), needle) ||
		strings.Contains(po.Party, needle) ||
		strings.Contains(po.Salesman, needle) ||
		strings.Contains(po.Destination, needle) {
		return true
	}
	for _, line := range po.Items {
		if strings.Contains(line.Material, needle) {
			return true
		}
	}
	return false
}

// Materials 物料联想列表
func (s *OrderService) Materials() []string {
	return s.store.Materials()
}
