package service

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var xlsxHeaders = []string{
	"发货单号", "订单号", "客户", "业务员", "发货日期",
	"发票号", "车牌号", "司机电话", "物料", "数量",
	"承运商", "目的地", "行项金额",
}

// ExportXLSX 导出发货报表为xlsx
func (s *ReportService) ExportXLSX(summary *ReportSummary) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := "发货报表"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// 写入表头
	for i, h := range xlsxHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	// 写入数据行
	var totalQty, totalAmount float64
	for rowIdx, row := range summary.Rows {
		r := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", r), row.DispatchID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", r), row.POID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.Party)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", r), row.Salesman)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", r), row.DispatchedAt.UTC().Format("02-01-2006"))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", r), row.InvoiceNumber)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", r), row.VehicleNumber)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", r), row.DriverContact)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", r), row.Material)
		f.SetCellValue(sheet, fmt.Sprintf("J%d", r), Round2(row.Quantity))
		f.SetCellValue(sheet, fmt.Sprintf("K%d", r), row.TransporterName)
		f.SetCellValue(sheet, fmt.Sprintf("L%d", r), row.Destination)
		f.SetCellValue(sheet, fmt.Sprintf("M%d", r), Round2(row.LineAmount))
		totalQty += row.Quantity
		totalAmount += row.LineAmount
	}

	// 底部汇总行
	summaryRow := len(summary.Rows) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("总行数: %d", len(summary.Rows)))
	f.SetCellValue(sheet, fmt.Sprintf("J%d", summaryRow), Round2(totalQty))
	f.SetCellValue(sheet, fmt.Sprintf("M%d", summaryRow), Round2(totalAmount))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("M%d", summaryRow), summaryStyle)

	// 列宽
	colWidths := []float64{20, 8, 18, 14, 12, 12, 12, 14, 16, 10, 14, 14, 12}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("dispatch_report_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}
