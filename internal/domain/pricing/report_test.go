package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSummary(t *testing.T) {
	calc, err := Calculate(cart(), member, append([]Coupon{pct90()}, fixedAll()...))
	require.NoError(t, err)

	out := FormatSummary(calc)

	assert.True(t, strings.HasPrefix(out, reportRule+"\n订单明细\n"+reportRule+"\n"))
	assert.True(t, strings.HasSuffix(out, reportRule))
	for _, want := range []string{
		"商品：iPhone 15",
		"  单价：¥5999.00 × 1",
		"  单价：¥99.00 × 2",
		"  小计：¥198.00",
		"  商品总价：¥8196.00",
		"  可优惠金额：¥7998.00",
		"  不可优惠金额：¥198.00",
		"优惠明细：",
		"  折扣券9折优惠，优惠金额：¥799.80",
		"  满1000.00减200.00，优惠金额：¥200.00",
		"总优惠金额：¥1109.80",
		"最终实付金额：¥7086.20",
		"大写金额：柒仟零捌拾陆元贰角",
	} {
		assert.Contains(t, out, want)
	}
	// The ineligible case line carries no discount.
	assert.Equal(t, 2, strings.Count(out, "  优惠：-¥"))
}

func TestFormatSummary_NoDiscounts(t *testing.T) {
	calc, err := Calculate(cart(), nonMember, nil)
	require.NoError(t, err)

	out := FormatSummary(calc)
	assert.NotContains(t, out, "优惠明细：")
	assert.NotContains(t, out, "  优惠：")
	assert.Contains(t, out, "最终实付金额：¥8196.00")
	assert.Contains(t, out, "大写金额：捌仟壹佰玖拾陆元整")
}

func TestFormatSummary_NegativeTotalOmitsWords(t *testing.T) {
	products := []Product{{ID: "P1", Name: "item", Price: d("10"), Quantity: 1, Eligible: true}}
	calc, err := Calculate(products, nonMember, []Coupon{NewFixedCoupon("C", "满0减50", d("0"), d("50"))})
	require.NoError(t, err)

	out := FormatSummary(calc)
	assert.Contains(t, out, "最终实付金额：¥-40.00")
	assert.NotContains(t, out, "大写金额")
}

func TestFormatSummary_Deterministic(t *testing.T) {
	coupons := append([]Coupon{pct85()}, fixedAll()...)
	first, err := Calculate(cart(), member, coupons)
	require.NoError(t, err)
	second, err := Calculate(cart(), member, coupons)
	require.NoError(t, err)

	assert.Equal(t, FormatSummary(first), FormatSummary(second))
}
