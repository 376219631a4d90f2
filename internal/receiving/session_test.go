package receiving

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPO(id string) PurchaseOrder {
	return PurchaseOrder{
		ID:           id,
		Number:       "PO-" + id,
		SupplierName: "Dệt May A",
		Lines: []PurchaseOrderLine{
			{ID: id + "-l1", ProductID: "p1", ProductName: "Áo thun", ColorName: "Đỏ", SizeName: "M", OrderedQty: 50, UnitPrice: 100000},
			{ID: id + "-l2", ProductID: "p2", ProductName: "Quần jean", ColorName: "Xanh", SizeName: "L", OrderedQty: 20, UnitPrice: 250000},
			{ID: id + "-l3", ProductID: "p3", ProductName: "Mũ lưỡi trai", ColorName: "Đen", OrderedQty: 10, UnitPrice: 50000},
		},
	}
}

func csvWorkbook(t *testing.T, content string) *Workbook {
	t.Helper()
	wb, err := ReadWorkbook("phieu.csv", []byte(content), 0)
	require.NoError(t, err)
	return wb
}

// apply runs events in order and returns the final session and last outcome.
func apply(t *testing.T, s Session, events ...Event) (Session, Outcome) {
	t.Helper()
	var out Outcome
	for _, e := range events {
		s, out = Reduce(s, e)
	}
	return s, out
}

func remainingFor(po PurchaseOrder) RemainingLoaded {
	q := make([]RemainingQuantity, 0, len(po.Lines))
	for _, l := range po.Lines {
		q = append(q, RemainingQuantity{LineItemID: l.ID, Remaining: l.OrderedQty})
	}
	return RemainingLoaded{POID: po.ID, Quantities: q}
}

func TestReduceSelectPO(t *testing.T) {
	po := testPO("po-1")
	s, out := Reduce(Session{}, POSelected{PO: po})

	assert.Equal(t, PhasePOSelected, s.Phase)
	assert.Equal(t, ModeManual, s.Mode)
	assert.Equal(t, "po-1", out.FetchRemaining)
	require.Len(t, s.Form.Items, 3)
	for i, item := range s.Form.Items {
		assert.Equal(t, po.Lines[i].ID, item.LineItemID)
		assert.Zero(t, item.ReceivedQty)
		assert.Equal(t, ConditionGood, item.Condition)
	}
	assert.False(t, s.RemainingLoaded)
}

func TestReduceDiscardsStaleRemaining(t *testing.T) {
	first, second := testPO("po-1"), testPO("po-2")
	s, _ := apply(t, Session{}, POSelected{PO: first}, POSelected{PO: second})

	s, out := Reduce(s, remainingFor(first))
	assert.True(t, out.Discarded)
	assert.False(t, s.RemainingLoaded)
	assert.Nil(t, s.Remaining)

	s, out = Reduce(s, RemainingFailed{POID: "po-1", Err: errors.New("timeout")})
	assert.True(t, out.Discarded)
	assert.Empty(t, out.Notices)

	s, out = Reduce(s, remainingFor(second))
	assert.False(t, out.Discarded)
	assert.True(t, s.RemainingLoaded)
	assert.Equal(t, int64(20), s.Remaining["po-2-l2"])
}

func TestReduceManualSubmitRequiresQuantity(t *testing.T) {
	po := PurchaseOrder{ID: "po-1", Lines: []PurchaseOrderLine{
		{ID: "a", ProductName: "Áo thun", OrderedQty: 10, UnitPrice: 1000},
		{ID: "b", ProductName: "Quần jean", OrderedQty: 5, UnitPrice: 2000},
	}}
	s, out := apply(t, Session{}, POSelected{PO: po}, HeaderEdited{ReceiverID: "u-1"}, SubmitRequested{})

	assert.Nil(t, out.Submit)
	require.Len(t, out.Notices, 1)
	assert.Equal(t, Notice{Level: NoticeError, Message: "Vui lòng chọn ít nhất một sản phẩm để nhập kho"}, out.Notices[0])
	assert.Equal(t, PhasePOSelected, s.Phase)
	assert.False(t, s.Submitting)
}

func TestReduceManualEditChecksRemaining(t *testing.T) {
	po := testPO("po-1")
	s, _ := apply(t, Session{},
		POSelected{PO: po},
		RemainingLoaded{POID: "po-1", Quantities: []RemainingQuantity{{LineItemID: "po-1-l1", Remaining: 10}}},
		FieldEdited{Row: 0, Field: FieldReceivedQty, Value: "11"},
	)
	assert.Zero(t, s.Form.Items[0].ReceivedQty, "rejected edit is not applied")
	assert.Contains(t, s.EditErrors[0], "vượt quá số lượng còn cần nhập")

	s, _ = Reduce(s, FieldEdited{Row: 0, Field: FieldReceivedQty, Value: "10"})
	assert.Equal(t, int64(10), s.Form.Items[0].ReceivedQty)
	assert.Nil(t, s.EditErrors)
	assert.Equal(t, PhaseManualEntry, s.Phase)

	s, out := apply(t, s, FieldEdited{Row: 2, Field: FieldCondition, Value: "hư hỏng"}, FieldEdited{Row: 2, Field: FieldReceivedQty, Value: "3"}, SubmitRequested{})
	assert.Nil(t, out.Submit)
	assert.Equal(t, "Vui lòng chọn người nhận hàng", out.Notices[0].Message)
	assert.Equal(t, PhaseManualEntry, s.Phase)

	s, out = apply(t, s, HeaderEdited{ReceiverID: "u-7", Notes: "giao đợt 1"}, SubmitRequested{})
	require.NotNil(t, out.Submit)
	assert.True(t, s.Submitting)
	assert.Equal(t, PhaseReadyToSubmit, s.Phase)
	assert.Equal(t, SubmissionPayload{
		PurchaseOrderID: "po-1",
		ReceiverID:      "u-7",
		Notes:           "giao đợt 1",
		Lines: []SubmissionLine{
			{LineItemID: "po-1-l1", ReceivedQuantity: 10, UnitPrice: 100000, Condition: ConditionGood},
			{LineItemID: "po-1-l3", ReceivedQuantity: 3, UnitPrice: 50000, Condition: ConditionDamaged},
		},
	}, *out.Submit)

	s, out = Reduce(s, SubmitSucceeded{Result: SubmitResult{Success: true, ID: "GRN-001"}})
	assert.Equal(t, PhaseSubmitted, s.Phase)
	assert.Equal(t, "GRN-001", s.ReceiptID)
	assert.Empty(t, s.Form.Items)
	assert.Equal(t, NoticeSuccess, out.Notices[0].Level)
}

const threeRowSheet = "STT,Tên sản phẩm,Màu sắc,Size,Số lượng đặt,Số lượng nhận,Đơn giá\n" +
	"1,Áo thun,Đỏ,M,50,50,100.000\n" +
	"2,Quần jean,Xanh,L,20,20,300.000\n" +
	"3,Mũ lưỡi trai,Đen,,10,4,50\n"

func TestReduceImportWithErrorsNeedsConfirmation(t *testing.T) {
	po := testPO("po-1")
	s, out := apply(t, Session{},
		POSelected{PO: po},
		remainingFor(po),
		HeaderEdited{ReceiverID: "u-1"},
		ModeChanged{Mode: ModeImport},
	)
	assert.Equal(t, PhaseImportPending, s.Phase)
	assert.Empty(t, s.Form.Items)
	assert.Equal(t, "u-1", s.Form.ReceiverID)

	s, out = apply(t, s, FileLoaded{Workbook: csvWorkbook(t, threeRowSheet)}, SheetChosen{Name: "phieu"})
	assert.Empty(t, out.Notices)
	assert.Len(t, s.Preview, 3)

	s, _ = Reduce(s, ImportConfirmed{})
	assert.Equal(t, PhaseImportLoaded, s.Phase)
	require.Len(t, s.Form.Items, 3)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, ValidationError{Row: 3, Field: FieldUnitPrice, Message: s.Errors[0].Message}, s.Errors[0])
	assert.Nil(t, s.Workbook)

	s, out = Reduce(s, SubmitRequested{})
	assert.Nil(t, out.Submit)
	assert.Equal(t, PhaseReadyToSubmit, s.Phase)
	assert.Equal(t, &SubmitSummary{TotalRows: 3, ValidRows: 2, ErrorCount: 1}, s.Pending)

	declined, _ := Reduce(s, SubmitDeclined{})
	assert.Equal(t, PhaseImportLoaded, declined.Phase)
	assert.Nil(t, declined.Pending)

	s, out = Reduce(s, SubmitConfirmed{})
	require.NotNil(t, out.Submit)
	require.Len(t, out.Submit.Lines, 2)
	assert.Equal(t, "po-1-l1", out.Submit.Lines[0].LineItemID)
	assert.Equal(t, "po-1-l3", out.Submit.Lines[1].LineItemID)
	assert.Equal(t, int64(50000), out.Submit.Lines[1].UnitPrice, "PO price is submitted")
	assert.Equal(t, int64(4), out.Submit.Lines[1].ReceivedQuantity)

	s, out = Reduce(s, SubmitFailed{Err: errors.New("502")})
	assert.False(t, s.Submitting)
	assert.Equal(t, PhaseImportLoaded, s.Phase)
	assert.Len(t, s.Form.Items, 3)
	assert.Equal(t, NoticeError, out.Notices[0].Level)
}

func TestReduceImportKeepsOverReceivedRow(t *testing.T) {
	po := PurchaseOrder{ID: "po-1", Lines: []PurchaseOrderLine{{ID: "l1", ProductName: "Áo thun", OrderedQty: 50, UnitPrice: 100000}}}
	sheet := "STT,Tên sản phẩm,Số lượng đặt,Số lượng nhận,Đơn giá\n1,Áo thun,50,60,100000\n"
	s, _ := apply(t, Session{},
		POSelected{PO: po},
		RemainingLoaded{POID: "po-1", Quantities: []RemainingQuantity{{LineItemID: "l1", Remaining: 50}}},
		ModeChanged{Mode: ModeImport},
		FileLoaded{Workbook: csvWorkbook(t, sheet)},
		SheetChosen{Name: "phieu"},
		ImportConfirmed{},
	)
	require.Len(t, s.Form.Items, 1)
	assert.Equal(t, int64(60), s.Form.Items[0].ReceivedQty)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, FieldReceivedQty, s.Errors[0].Field)

	s, _ = Reduce(s, FieldEdited{Row: 0, Field: FieldReceivedQty, Value: "50"})
	assert.Empty(t, s.Errors, "edits re-run full validation")
}

func TestReduceImportRevalidatesWhenRemainingArrives(t *testing.T) {
	po := testPO("po-1")
	s, _ := apply(t, Session{},
		POSelected{PO: po},
		ModeChanged{Mode: ModeImport},
		FileLoaded{Workbook: csvWorkbook(t, "STT,Tên sản phẩm,Màu sắc,Size,Số lượng đặt,Số lượng nhận,Đơn giá\n1,Áo thun,Đỏ,M,50,30,100000\n")},
		SheetChosen{Name: "phieu"},
		ImportConfirmed{},
	)
	assert.Empty(t, s.Errors)

	s, _ = Reduce(s, RemainingLoaded{POID: "po-1", Quantities: []RemainingQuantity{{LineItemID: "po-1-l1", Remaining: 20}}})
	require.Len(t, s.Errors, 1)
	assert.Equal(t, FieldReceivedQty, s.Errors[0].Field)
}

func TestReduceSheetWithoutRequiredColumns(t *testing.T) {
	po := testPO("po-1")
	s, out := apply(t, Session{},
		POSelected{PO: po},
		ModeChanged{Mode: ModeImport},
		FileLoaded{Workbook: csvWorkbook(t, "Tên sản phẩm,Ghi chú\nÁo thun,x\n")},
		SheetChosen{Name: "phieu"},
	)
	assert.Empty(t, s.Sheet)
	require.Len(t, out.Notices, 1)
	assert.Contains(t, out.Notices[0].Message, "Thiếu cột bắt buộc")

	s, out = Reduce(s, ImportConfirmed{})
	assert.Equal(t, PhaseImportPending, s.Phase)
	assert.Equal(t, NoticeWarning, out.Notices[0].Level)
}

func TestReduceCancelAndGuards(t *testing.T) {
	s, out := Reduce(Session{}, ModeChanged{Mode: ModeImport})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.NotEmpty(t, out.Notices)

	s, _ = apply(t, Session{}, POSelected{PO: testPO("po-1")}, ModeChanged{Mode: ModeImport}, Cancelled{})
	assert.Equal(t, Session{Phase: PhaseIdle}, s)

	s, out = Reduce(s, SubmitSucceeded{Result: SubmitResult{Success: true, ID: "x"}})
	assert.Equal(t, PhaseIdle, s.Phase, "late submission answers are ignored")
	assert.Empty(t, out.Notices)
}

func TestBuildPayloadKeepsOrderDenomination(t *testing.T) {
	po := testPO("po-1")
	s := Session{PO: &po, Form: ReceiptForm{ReceiverID: "u-1"}}
	items := []GoodsReceiptItem{
		{LineItemID: "po-1-l1", ReceivedQty: 5, UnitPrice: 100000},
		{LineItemID: "po-1-l2", ReceivedQty: 2, UnitPrice: 250},
		{ProductName: "Hàng tặng", ReceivedQty: 1, UnitPrice: 1234},
	}

	payload := buildPayload(s, items)
	require.Len(t, payload.Lines, 3)
	assert.Equal(t, int64(100000), payload.Lines[0].UnitPrice)
	assert.Equal(t, int64(250000), payload.Lines[1].UnitPrice)
	assert.Equal(t, int64(1234), payload.Lines[2].UnitPrice)
	assert.Equal(t, ConditionGood, payload.Lines[2].Condition)
}
