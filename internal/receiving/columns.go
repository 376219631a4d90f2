package receiving

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field is a canonical receipt column.
type Field string

const (
	FieldSequence    Field = "sequence"
	FieldProductName Field = "productName"
	FieldColor       Field = "color"
	FieldSize        Field = "size"
	FieldUnit        Field = "unit"
	FieldOrderedQty  Field = "orderedQuantity"
	FieldReceivedQty Field = "receivedQuantity"
	FieldUnitPrice   Field = "unitPrice"
	FieldLineTotal   Field = "lineTotal"
	FieldNotes       Field = "notes"
	FieldCondition   Field = "condition"
)

var fieldLabels = map[Field]string{
	FieldSequence:    "STT",
	FieldProductName: "Tên sản phẩm",
	FieldColor:       "Màu sắc",
	FieldSize:        "Size",
	FieldUnit:        "Đơn vị tính",
	FieldOrderedQty:  "Số lượng đặt",
	FieldReceivedQty: "Số lượng nhận",
	FieldUnitPrice:   "Đơn giá (VNĐ)",
	FieldLineTotal:   "Thành tiền (VNĐ)",
	FieldNotes:       "Ghi chú",
	FieldCondition:   "Tình trạng",
}

// Label returns the template header for the field.
func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

// columnAliases lists accepted header spellings per field. Matching is exact
// and case-sensitive; earlier spellings win.
var columnAliases = []struct {
	field   Field
	headers []string
}{
	{FieldSequence, []string{"STT", "Stt", "stt", "No.", "No", "#"}},
	{FieldProductName, []string{"Tên sản phẩm", "Tên Sản Phẩm", "TÊN SẢN PHẨM", "Sản phẩm", "Product Name", "Product name", "productName", "product_name", "Product"}},
	{FieldColor, []string{"Màu sắc", "Màu Sắc", "MÀU SẮC", "Màu", "Color", "color", "colorName", "Colour"}},
	{FieldSize, []string{"Size", "SIZE", "size", "Kích cỡ", "Kích thước", "sizeName"}},
	{FieldUnit, []string{"Đơn vị tính", "Đơn Vị Tính", "ĐVT", "Đơn vị", "Unit", "unit"}},
	{FieldOrderedQty, []string{"Số lượng đặt", "Số Lượng Đặt", "SỐ LƯỢNG ĐẶT", "SL đặt", "Ordered Quantity", "Ordered Qty", "orderedQuantity", "quantity"}},
	{FieldReceivedQty, []string{"Số lượng nhận", "Số Lượng Nhận", "SỐ LƯỢNG NHẬN", "SL nhận", "Received Quantity", "Received Qty", "receivedQuantity"}},
	{FieldUnitPrice, []string{"Đơn giá (VNĐ)", "Đơn giá", "Đơn Giá", "ĐƠN GIÁ (VNĐ)", "ĐƠN GIÁ", "Unit Price", "Unit price", "unitPrice", "Price"}},
	{FieldLineTotal, []string{"Thành tiền (VNĐ)", "Thành tiền", "Thành Tiền", "THÀNH TIỀN (VNĐ)", "Total", "Line Total", "totalPrice"}},
	{FieldNotes, []string{"Ghi chú", "Ghi Chú", "GHI CHÚ", "Notes", "Note", "notes"}},
	{FieldCondition, []string{"Tình trạng", "Tình Trạng", "Condition", "condition"}},
}

var requiredColumns = []Field{FieldProductName, FieldOrderedQty, FieldReceivedQty, FieldUnitPrice}

// ColumnMap maps each resolved field to its column index.
type ColumnMap map[Field]int

// ResolveColumns matches a header row against the accepted spellings.
func ResolveColumns(header []string) ColumnMap {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		h := normalizeHeader(cell)
		if h == "" {
			continue
		}
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}
	cols := make(ColumnMap, len(columnAliases))
	for _, alias := range columnAliases {
		for _, candidate := range alias.headers {
			if idx, ok := positions[candidate]; ok {
				cols[alias.field] = idx
				break
			}
		}
	}
	return cols
}

// Missing lists the required fields that were not resolved.
func (m ColumnMap) Missing() []Field {
	var missing []Field
	for _, f := range requiredColumns {
		if _, ok := m[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Cell returns the trimmed cell for field, or "" when absent.
func (m ColumnMap) Cell(row []string, f Field) string {
	idx, ok := m[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// normalizeHeader composes diacritics and collapses inner whitespace so that
// wrapped header cells ("Số lượng\nnhận") still match.
func normalizeHeader(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// normalizeText is the case-insensitive form used for matching and
// keyword detection.
func normalizeText(s string) string {
	return strings.ToLower(normalizeHeader(s))
}
