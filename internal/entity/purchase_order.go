package entity

import (
	"strings"
	"time"
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID          string `json:"id"`
	ExternalRef string `json:"external_ref,omitempty"`

	Party       string `json:"party"`
	Site        string `json:"site"`
	Destination string `json:"destination"`
	Salesman    string `json:"salesman"`

	Items []MaterialLine `json:"items"`

	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`

	// DispatchedQty 按规范化物料名累计的已发数量，缺失键视为0
	DispatchedQty map[string]float64 `json:"dispatched_qty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PO状态
const (
	POStatusPending   = "pending"
	POStatusPartial   = "partial"
	POStatusCompleted = "completed"
	POStatusCancelled = "cancelled"
)

// MaterialLine 订单行项
type MaterialLine struct {
	Material      string  `json:"material"`
	Quantity      float64 `json:"quantity"`
	Rate          float64 `json:"rate"`
	TaxRatePercent float64 `json:"tax_rate_percent"`
}

// GST税率档位
var TaxRateSlabs = []float64{0, 3, 5, 12, 18, 28}

// ValidTaxRate 校验税率是否为合法档位
func ValidTaxRate(pct float64) bool {
	for _, s := range TaxRateSlabs {
		if pct == s {
			return true
		}
	}
	return false
}

// CanonicalMaterial 物料名规范化（去空格+大写），全系统以此为识别键
func CanonicalMaterial(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// DispatchedOf 读取某物料的累计已发数量，缺失返回0
func (po *PurchaseOrder) DispatchedOf(material string) float64 {
	if po.DispatchedQty == nil {
		return 0
	}
	return po.DispatchedQty[CanonicalMaterial(material)]
}

// PendingOf 计算某行项的待发数量，超发时为负数
func (po *PurchaseOrder) PendingOf(line MaterialLine) float64 {
	return line.Quantity - po.DispatchedOf(line.Material)
}

// Clone 深拷贝，台账对外只交出副本
func (po *PurchaseOrder) Clone() *PurchaseOrder {
	cp := *po
	cp.Items = make([]MaterialLine, len(po.Items))
	copy(cp.Items, po.Items)
	cp.DispatchedQty = make(map[string]float64, len(po.DispatchedQty))
	for k, v := range po.DispatchedQty {
		cp.DispatchedQty[k] = v
	}
	return &cp
}
