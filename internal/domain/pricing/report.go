package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/pkg/rmb"
)

const reportRule = "=================================================="

// FormatSummary renders a calculation as a human-readable receipt. Amounts
// are rounded to two decimal places here and nowhere else.
func FormatSummary(calc *OrderCalculation) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(reportRule)
	line("订单明细")
	line(reportRule)

	for _, item := range calc.Items {
		line("商品：%s", item.Product.Name)
		line("  单价：%s × %d", yuan(item.Product.Price), item.Product.Quantity)
		line("  小计：%s", yuan(item.Subtotal))
		if item.DiscountApplied.IsPositive() {
			line("  优惠：-%s", yuan(item.DiscountApplied))
		}
		line("")
	}

	line("金额汇总：")
	line("  商品总价：%s", yuan(calc.Subtotal))
	line("  可优惠金额：%s", yuan(calc.DiscountableAmount))
	line("  不可优惠金额：%s", yuan(calc.NonDiscountableAmount))
	line("")

	if len(calc.DiscountDetails) > 0 {
		line("优惠明细：")
		for _, d := range calc.DiscountDetails {
			line("  %s", d.Description)
		}
		line("")
	}

	line("总优惠金额：%s", yuan(calc.TotalDiscount))
	line("最终实付金额：%s", yuan(calc.FinalAmount))
	if words, err := rmb.Words(calc.FinalAmount); err == nil {
		line("大写金额：%s", words)
	}
	b.WriteString(reportRule)

	return b.String()
}

func yuan(d decimal.Decimal) string {
	return "¥" + d.StringFixed(2)
}
