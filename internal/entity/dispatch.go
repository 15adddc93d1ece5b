package entity

import "time"

// Dispatch 发货单（一张PO可对应多次发货）
type Dispatch struct {
	ID   string `json:"id"`
	POID string `json:"po_id"`

	VehicleNumber   string `json:"vehicle_number"`
	DriverContact   string `json:"driver_contact"`
	InvoiceNumber   string `json:"invoice_number,omitempty"`
	TransporterName string `json:"transporter_name,omitempty"`

	Items []DispatchItem `json:"items"`

	// DispatchedAt 用户填写的发货日期，排序与报表过滤均以此为准
	DispatchedAt time.Time `json:"dispatched_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DispatchItem 发货行项
type DispatchItem struct {
	Material string  `json:"material"`
	Quantity float64 `json:"quantity"`
}

// TotalQuantity 发货单全部行项数量之和
func (d *Dispatch) TotalQuantity() float64 {
	var total float64
	for _, item := range d.Items {
		total += item.Quantity
	}
	return total
}

// Voided 全部行项数量为0视为已作废
func (d *Dispatch) Voided() bool {
	return d.TotalQuantity() == 0
}

// Clone 深拷贝
func (d *Dispatch) Clone() *Dispatch {
	cp := *d
	cp.Items = make([]DispatchItem, len(d.Items))
	copy(cp.Items, d.Items)
	return &cp
}
