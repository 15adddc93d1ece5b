package service

import "math"

// LineAmounts 行项金额拆分
type LineAmounts struct {
	Taxable   float64 `json:"taxable"`
	Tax       float64 `json:"tax"`
	LineTotal float64 `json:"line_total"`
}

// CalculateLine 计算应税额、税额与含税小计。内部保留完整浮点精度，
// 只在展示/导出边界做两位小数舍入，避免多行累积舍入误差。
func CalculateLine(quantity, rate, taxRatePercent float64) LineAmounts {
	taxable := quantity * rate
	tax := taxable * taxRatePercent / 100
	return LineAmounts{
		Taxable:   taxable,
		Tax:       tax,
		LineTotal: taxable + tax,
	}
}

// Round2 展示边界的两位小数舍入
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
