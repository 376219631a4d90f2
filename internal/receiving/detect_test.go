package receiving

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var templateHeader = []string{"STT", "Tên sản phẩm", "Màu sắc", "Size", "Đơn vị tính", "Số lượng đặt", "Số lượng nhận", "Đơn giá (VNĐ)", "Thành tiền (VNĐ)", "Ghi chú"}

func TestDetectDataStartPrintedForm(t *testing.T) {
	rows := [][]string{
		{"CÔNG TY TNHH MAY MẶC"},
		{"", "PHIẾU NHẬP KHO"},
		{"Số phiếu:", "PN-001"},
		{"Nhà cung cấp:", "Dệt May A"},
		{},
		templateHeader,
		{"1", "Áo thun", "Đỏ", "M", "Cái", "50", "50", "100.000", "5.000.000"},
	}
	assert.Equal(t, 6, DetectDataStart(rows))
}

func TestDetectDataStartBareTable(t *testing.T) {
	rows := [][]string{
		templateHeader,
		{"1", "Áo thun", "Đỏ", "M", "Cái", "50", "50", "100000"},
	}
	assert.Equal(t, 1, DetectDataStart(rows))
}

func TestDetectDataStartDefaultsToFirstRow(t *testing.T) {
	rows := [][]string{
		{"STT", "Tên sản phẩm"},
		{"1", "Áo thun"},
	}
	assert.Equal(t, 1, DetectDataStart(rows))
	assert.Equal(t, 1, DetectDataStart(nil))
}

func TestDetectDataStartRequiresQuantityKeyword(t *testing.T) {
	rows := [][]string{
		{"ghi chú"},
		{"STT", "Tên sản phẩm", "Màu sắc", "Size", "Đơn giá"},
		{"1", "Áo thun", "Đỏ", "M", "100000"},
	}
	assert.Equal(t, 1, DetectDataStart(rows))
}

func TestExtractRowsStopsAtFooter(t *testing.T) {
	rows := [][]string{
		templateHeader,
		{"1", "Áo thun", "Đỏ", "M", "Cái", "50", "40", "100.000", "4.000.000", "giao thiếu"},
		{},
		{"2", "Quần jean", "Xanh", "L", "Cái", "20", "20", "250,000"},
		{"", "", "", "", "", "", "", "Tổng cộng", "9.000.000"},
		{"3", "Không đọc", "", "", "", "1", "1", "1"},
	}
	cols := ResolveColumns(rows[0])
	got := ExtractRows(rows, 1, cols)
	require.Len(t, got, 2)
	assert.Equal(t, ImportRow{
		SheetRow: 2, Sequence: "1", ProductName: "Áo thun", ColorName: "Đỏ", SizeName: "M", Unit: "Cái",
		OrderedQty: 50, ReceivedQty: 40, UnitPrice: 100000, Condition: ConditionGood, Notes: "giao thiếu",
	}, got[0])
	assert.Equal(t, 4, got[1].SheetRow)
	assert.Equal(t, int64(250000), got[1].UnitPrice)
}

func TestDetectDataStartCountsEachHeaderCellOnce(t *testing.T) {
	rows := [][]string{
		{"PHIẾU NHẬP KHO"},
		{"STT", "Tên sản phẩm", "Số lượng"},
		{"1", "Áo thun", "50"},
		{"STT", "Tên sản phẩm", "Số lượng", "Đơn giá"},
		{"1", "Áo thun", "50", "100000"},
	}
	assert.Equal(t, 4, DetectDataStart(rows))

	assert.False(t, isHeaderRow([]string{"STT", "Tên sản phẩm", "Số lượng đặt"}))
	assert.True(t, isHeaderRow([]string{"STT", "Tên sản phẩm", "Số lượng đặt", "Số lượng nhận"}))
}
