package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ordertrail/potrack/internal/entity"
	"github.com/ordertrail/potrack/internal/ledger"
	"go.uber.org/zap"
)

// ReportService 发货报表，台账之上的纯投影
type ReportService struct {
	store  *ledger.Store
	logger *zap.Logger
}

func NewReportService(store *ledger.Store, logger *zap.Logger) *ReportService {
	return &ReportService{store: store, logger: logger}
}

// ReportRow 报表行，一条发货行项一行
type ReportRow struct {
	DispatchID      string    `json:"dispatch_id"`
	POID            string    `json:"po_id"`
	Party           string    `json:"party"`
	Salesman        string    `json:"salesman"`
	DispatchedAt    time.Time `json:"dispatched_at"`
	InvoiceNumber   string    `json:"invoice_number"`
	VehicleNumber   string    `json:"vehicle_number"`
	DriverContact   string    `json:"driver_contact"`
	Material        string    `json:"material"`
	Quantity        float64   `json:"quantity"`
	TransporterName string    `json:"transporter_name"`
	Destination     string    `json:"destination"`
	LineAmount      float64   `json:"line_amount"`
}

// ReportSummary 按物料/业务员/客户聚合的发货量
type ReportSummary struct {
	Rows       []ReportRow        `json:"rows"`
	ByMaterial map[string]float64 `json:"by_material"`
	BySalesman map[string]float64 `json:"by_salesman"`
	ByParty    map[string]float64 `json:"by_party"`
}

// DateRange 报表日期范围，零值表示开边界
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange 解析YYYY-MM-DD边界：起点为当天UTC零点，终点为当天最后一刻
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.UTC)
		if err != nil {
			return r, fmt.Errorf("%w: 起始日期 %q 无效", ErrValidation, from)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			return r, fmt.Errorf("%w: 截止日期 %q 无效", ErrValidation, to)
		}
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return r, nil
}

// Contains 闭区间判断
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Generate 生成报表。作废订单的发货单一律剔除；
// 找不到所属订单的发货单记日志后跳过，不中断。
func (s *ReportService) Generate(rng DateRange) *ReportSummary {
	summary := &ReportSummary{
		Rows:       []ReportRow{},
		ByMaterial: make(map[string]float64),
		BySalesman: make(map[string]float64),
		ByParty:    make(map[string]float64),
	}

	for _, d := range s.store.ListDispatches() {
		if !rng.Contains(d.DispatchedAt) {
			continue
		}
		po := s.store.FindPO(d.POID)
		if po == nil {
			s.logger.Warn("Dispatch references missing purchase order, skipped",
				zap.String("dispatch_id", d.ID),
				zap.String("po_id", d.POID),
			)
			continue
		}
		if po.Status == entity.POStatusCancelled {
			continue
		}

		for _, item := range d.Items {
			row := ReportRow{
				DispatchID:      d.ID,
				POID:            po.ID,
				Party:           po.Party,
				Salesman:        po.Salesman,
				DispatchedAt:    d.DispatchedAt,
				InvoiceNumber:   d.InvoiceNumber,
				VehicleNumber:   d.VehicleNumber,
				DriverContact:   d.DriverContact,
				Material:        item.Material,
				Quantity:        item.Quantity,
				TransporterName: d.TransporterName,
				Destination:     po.Destination,
				LineAmount:      dispatchLineAmount(po, item),
			}
			summary.Rows = append(summary.Rows, row)
			summary.ByMaterial[item.Material] += item.Quantity
			summary.BySalesman[po.Salesman] += item.Quantity
			summary.ByParty[po.Party] += item.Quantity
		}
	}
	return summary
}

// dispatchLineAmount 按订单行项单价与税率为发货量估值；
// 发货了订单上没有的物料则计0。
func dispatchLineAmount(po *entity.PurchaseOrder, item entity.DispatchItem) float64 {
	for _, line := range po.Items {
		if entity.CanonicalMaterial(line.Material) == item.Material {
			return CalculateLine(item.Quantity, line.Rate, line.TaxRatePercent).LineTotal
		}
	}
	return 0
}

// csvHeaders CSV列序是对外契约，勿调整
var csvHeaders = []string{
	"Dispatch ID", "PO ID", "Party", "Salesman", "Date",
	"Invoice No.", "Vehicle No.", "Driver Contact", "Item Name",
	"Quantity", "Transporter", "Destination", "Item Line Amount",
}

// WriteCSV 导出CSV，行序按发货时间倒序（Generate已保证）
func (s *ReportService) WriteCSV(w io.Writer, summary *ReportSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return err
	}
	for _, row := range summary.Rows {
		record := []string{
			row.DispatchID,
			row.POID,
			row.Party,
			row.Salesman,
			row.DispatchedAt.UTC().Format("02-01-2006"),
			row.InvoiceNumber,
			row.VehicleNumber,
			row.DriverContact,
			row.Material,
			strconv.FormatFloat(Round2(row.Quantity), 'f', 2, 64),
			row.TransporterName,
			row.Destination,
			strconv.FormatFloat(Round2(row.LineAmount), 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DateFilter 持久化的报表日期边界
func (s *ReportService) DateFilter() (from, to string) {
	return s.store.DateFilter()
}

// SetDateFilter 校验后保存报表日期边界
func (s *ReportService) SetDateFilter(ctx context.Context, from, to string) error {
	if _, err := ParseDateRange(from, to); err != nil {
		return err
	}
	s.store.SetDateFilter(ctx, from, to)
	return nil
}
