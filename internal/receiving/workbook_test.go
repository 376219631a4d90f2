package receiving

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadWorkbookXLSX(t *testing.T) {
	data := buildXLSX(t, map[string][][]any{
		"Phiếu nhập": {
			{"PHIẾU NHẬP KHO"},
			{"Nhà cung cấp:", "Dệt May A"},
			{"STT", "Tên sản phẩm", "Màu sắc", "Size", "Số lượng đặt", "Số lượng nhận", "Đơn giá (VNĐ)"},
			{1, "Áo thun", "Đỏ", "M", 50, 45, 100000},
			{2, "Quần jean", "Xanh", "L", 20, 20, "250.000"},
		},
		"Trống": {},
	}, "Phiếu nhập", "Trống")

	wb, err := ReadWorkbook("phieu-nhap.xlsx", data, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []string{"Phiếu nhập"}, wb.SheetNames(), "blank sheets are not offered")

	sheet, err := wb.Sheet("Phiếu nhập")
	require.NoError(t, err)
	assert.Equal(t, 3, sheet.DataStart)

	_, rows, err := sheet.Extract()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Áo thun", rows[0].ProductName)
	assert.Equal(t, int64(45), rows[0].ReceivedQty)
	assert.Equal(t, int64(250000), rows[1].UnitPrice)
}

func TestReadWorkbookCSVWithBOM(t *testing.T) {
	data := []byte("\xEF\xBB\xBFSTT;Tên sản phẩm;Màu sắc;Size;Số lượng đặt;Số lượng nhận;Đơn giá\n1;Áo thun;Đỏ;M;50;50;100.000\n")

	wb, err := ReadWorkbook("Nhap kho.CSV", data, 0)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "Nhap kho", wb.Sheets[0].Name)

	cols, rows, err := wb.Sheets[0].Extract()
	require.NoError(t, err)
	assert.Equal(t, 0, cols[FieldSequence], "BOM must not hide the first header")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100000), rows[0].UnitPrice)
}

func TestReadWorkbookRejectsStructure(t *testing.T) {
	_, err := ReadWorkbook("receipt.pdf", []byte("%PDF"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = ReadWorkbook("receipt.csv", make([]byte, 11), 10)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = ReadWorkbook("receipt.csv", []byte("\n   \n,,\n"), 0)
	assert.ErrorIs(t, err, ErrNoDataRows)

	_, err = ReadWorkbook("receipt.xlsx", []byte("not a zip"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestSheetExtractMissingColumns(t *testing.T) {
	wb, err := ReadWorkbook("r.csv", []byte("Tên sản phẩm,Số lượng nhận\nÁo thun,5\n"), 0)
	require.NoError(t, err)

	_, _, err = wb.Sheets[0].Extract()
	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Equal(t, []Field{FieldOrderedQty, FieldUnitPrice}, se.Missing)
	assert.Equal(t, "Thiếu cột bắt buộc: Số lượng đặt, Đơn giá (VNĐ)", se.UserMessage())
}

func TestSheetExtractHeaderOnly(t *testing.T) {
	wb, err := ReadWorkbook("r.csv", []byte("Tên sản phẩm,Số lượng đặt,Số lượng nhận,Đơn giá\n"), 0)
	require.NoError(t, err)
	_, _, err = wb.Sheets[0].Extract()
	assert.ErrorIs(t, err, ErrNoDataRows)

	_, err = wb.Sheet("missing")
	assert.ErrorIs(t, err, ErrSheetNotFound)
}
