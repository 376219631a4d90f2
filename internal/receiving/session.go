package receiving

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// NoticeLevel grades a user notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message the UI should show after an event.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Session is the full state of one reconciliation session. Values are
// replaced, never mutated in place, by Reduce.
type Session struct {
	Phase     Phase
	Mode      Mode
	PO        *PurchaseOrder
	Remaining RemainingState
	// RemainingLoaded is false until the backend answered for the current PO.
	RemainingLoaded bool
	Form            ReceiptForm
	// Rows backs Form.Items in import mode, one row per item.
	Rows     []ImportRow
	Errors   []ValidationError
	Workbook *Workbook
	Sheet    string
	Preview  []ImportRow
	// EditErrors holds inline messages for rejected manual edits by item index.
	EditErrors map[int]string
	Pending    *SubmitSummary
	Submitting bool
	ReceiptID  string
	// resume is the phase to return to when a submission does not go ahead.
	resume Phase
}

// Event is an input to Reduce.
type Event interface {
	event()
}

type (
	// POSelected carries the purchase order chosen by the user.
	POSelected struct{ PO PurchaseOrder }
	// RemainingLoaded answers the remaining-quantity fetch issued for POID.
	RemainingLoaded struct {
		POID       string
		Quantities []RemainingQuantity
	}
	// RemainingFailed reports a failed remaining-quantity fetch for POID.
	RemainingFailed struct {
		POID string
		Err  error
	}
	ModeChanged     struct{ Mode Mode }
	FileLoaded      struct{ Workbook *Workbook }
	SheetChosen     struct{ Name string }
	ImportConfirmed struct{}
	// FieldEdited changes one field of the working item at Row (0-based).
	FieldEdited struct {
		Row   int
		Field Field
		Value string
	}
	HeaderEdited struct {
		ReceiverID string
		Notes      string
	}
	SubmitRequested struct{}
	SubmitConfirmed struct{}
	SubmitDeclined  struct{}
	SubmitSucceeded struct{ Result SubmitResult }
	SubmitFailed    struct{ Err error }
	Cancelled       struct{}
)

func (POSelected) event()      {}
func (RemainingLoaded) event() {}
func (RemainingFailed) event() {}
func (ModeChanged) event()     {}
func (FileLoaded) event()      {}
func (SheetChosen) event()     {}
func (ImportConfirmed) event() {}
func (FieldEdited) event()     {}
func (HeaderEdited) event()    {}
func (SubmitRequested) event() {}
func (SubmitConfirmed) event() {}
func (SubmitDeclined) event()  {}
func (SubmitSucceeded) event() {}
func (SubmitFailed) event()    {}
func (Cancelled) event()       {}

// Outcome lists what the caller has to do after a transition.
type Outcome struct {
	Notices []Notice
	// FetchRemaining is the PO whose remaining quantities must be fetched.
	FetchRemaining string
	// Submit is the payload to send to the backend.
	Submit *SubmissionPayload
	// Discarded is set when a stale async response was dropped.
	Discarded bool
}

func (o *Outcome) notify(level NoticeLevel, format string, args ...any) {
	o.Notices = append(o.Notices, Notice{Level: level, Message: fmt.Sprintf(format, args...)})
}

var payloadValidator = validator.New()

// Reduce applies an event to a session and returns the next session. It does
// no I/O and never blocks.
func Reduce(s Session, e Event) (Session, Outcome) {
	var out Outcome
	if s.Phase == "" {
		s.Phase = PhaseIdle
	}
	switch ev := e.(type) {
	case POSelected:
		if s.Submitting {
			out.notify(NoticeWarning, "Phiếu nhập đang được gửi")
			return s, out
		}
		s = selectPO(ev.PO)
		out.FetchRemaining = ev.PO.ID
	case RemainingLoaded:
		if s.PO == nil || s.PO.ID != ev.POID {
			out.Discarded = true
			return s, out
		}
		s.Remaining = NewRemainingState(ev.Quantities)
		s.RemainingLoaded = true
		if s.Phase == PhaseImportLoaded {
			s.Errors = Validate(s.Rows, s.PO.Lines, s.Remaining)
		}
	case RemainingFailed:
		if s.PO == nil || s.PO.ID != ev.POID {
			out.Discarded = true
			return s, out
		}
		out.notify(NoticeError, "Không tải được số lượng còn cần nhập của đơn %s", s.PO.Number)
	case ModeChanged:
		s = changeMode(s, ev.Mode, &out)
	case FileLoaded:
		s = loadFile(s, ev.Workbook, &out)
	case SheetChosen:
		s = chooseSheet(s, ev.Name, &out)
	case ImportConfirmed:
		s = confirmImport(s, &out)
	case FieldEdited:
		s = editField(s, ev, &out)
	case HeaderEdited:
		if !editable(s) {
			out.notify(NoticeWarning, "Vui lòng chọn đơn đặt hàng trước")
			return s, out
		}
		s.Form.ReceiverID = ev.ReceiverID
		s.Form.Notes = ev.Notes
	case SubmitRequested:
		s = requestSubmit(s, &out)
	case SubmitConfirmed:
		s = confirmSubmit(s, &out)
	case SubmitDeclined:
		if s.Pending != nil && !s.Submitting {
			s.Pending = nil
			s.Phase = s.resume
		}
	case SubmitSucceeded:
		if !s.Submitting {
			return s, out
		}
		s = Session{Phase: PhaseSubmitted, Mode: s.Mode, PO: s.PO, ReceiptID: ev.Result.ID}
		out.notify(NoticeSuccess, "Đã tạo phiếu nhập kho %s", ev.Result.ID)
	case SubmitFailed:
		if !s.Submitting {
			return s, out
		}
		s.Submitting = false
		s.Pending = nil
		s.Phase = s.resume
		out.notify(NoticeError, "Không thể tạo phiếu nhập kho, vui lòng thử lại")
	case Cancelled:
		s = Session{Phase: PhaseIdle}
	}
	return s, out
}

func selectPO(po PurchaseOrder) Session {
	items := make([]GoodsReceiptItem, 0, len(po.Lines))
	for _, line := range po.Lines {
		items = append(items, itemFromLine(line))
	}
	return Session{
		Phase: PhasePOSelected,
		Mode:  ModeManual,
		PO:    &po,
		Form:  ReceiptForm{PurchaseOrderID: po.ID, Items: items},
	}
}

func itemFromLine(line PurchaseOrderLine) GoodsReceiptItem {
	return GoodsReceiptItem{
		LineItemID:  line.ID,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		ColorName:   line.ColorName,
		SizeName:    line.SizeName,
		OrderedQty:  line.OrderedQty,
		UnitPrice:   line.UnitPrice,
		Condition:   ConditionGood,
	}
}

// itemsFromRows builds one working item per imported row. Rows that match a
// PO line carry its identifiers; the rest keep only the sheet values.
func itemsFromRows(rows []ImportRow, lines []PurchaseOrderLine) []GoodsReceiptItem {
	matched := matchRows(rows, lines)
	items := make([]GoodsReceiptItem, 0, len(rows))
	for i, row := range rows {
		item := GoodsReceiptItem{
			ProductName: row.ProductName,
			ColorName:   row.ColorName,
			SizeName:    row.SizeName,
			OrderedQty:  row.OrderedQty,
			ReceivedQty: row.ReceivedQty,
			UnitPrice:   row.UnitPrice,
			Condition:   row.Condition,
			Notes:       row.Notes,
			RowNumber:   ValidationRow(i),
		}
		if li := matched[i]; li >= 0 {
			item.LineItemID = lines[li].ID
			item.ProductID = lines[li].ProductID
		}
		items = append(items, item)
	}
	return items
}

func editable(s Session) bool {
	return s.PO != nil && !s.Submitting && s.Phase != PhaseSubmitted && s.Phase != PhaseIdle
}

func changeMode(s Session, mode Mode, out *Outcome) Session {
	if !editable(s) {
		out.notify(NoticeWarning, "Vui lòng chọn đơn đặt hàng trước")
		return s
	}
	base := selectPO(*s.PO)
	base.Remaining = s.Remaining
	base.RemainingLoaded = s.RemainingLoaded
	base.Form.ReceiverID = s.Form.ReceiverID
	base.Form.Notes = s.Form.Notes
	switch mode {
	case ModeManual:
		base.Phase = PhaseManualEntry
	case ModeImport:
		base.Mode = ModeImport
		base.Phase = PhaseImportPending
		base.Form.Items = nil
	default:
		out.notify(NoticeError, "Chế độ nhập không hợp lệ")
		return s
	}
	return base
}

func loadFile(s Session, wb *Workbook, out *Outcome) Session {
	if s.Mode != ModeImport || (s.Phase != PhaseImportPending && s.Phase != PhaseImportLoaded) || s.Submitting {
		out.notify(NoticeWarning, "Vui lòng chuyển sang chế độ nhập từ tệp")
		return s
	}
	if wb == nil || len(wb.Sheets) == 0 {
		out.notify(NoticeError, "Không có dòng dữ liệu nào trong tệp")
		return s
	}
	s.Workbook = wb
	s.Sheet = ""
	s.Preview = nil
	out.notify(NoticeInfo, "Đã đọc tệp %s, vui lòng chọn sheet", wb.FileName)
	return s
}

func chooseSheet(s Session, name string, out *Outcome) Session {
	if s.Workbook == nil || s.Submitting {
		out.notify(NoticeWarning, "Vui lòng tải tệp lên trước")
		return s
	}
	sheet, err := s.Workbook.Sheet(name)
	if err == nil {
		_, rows, extractErr := sheet.Extract()
		if extractErr == nil {
			s.Sheet = name
			s.Preview = rows[:min(previewRows, len(rows))]
			return s
		}
		err = extractErr
	}
	notifyStructural(out, err)
	s.Sheet = ""
	s.Preview = nil
	return s
}

func notifyStructural(out *Outcome, err error) {
	var se *StructuralError
	if errors.As(err, &se) {
		out.notify(NoticeError, "%s", se.UserMessage())
		return
	}
	out.notify(NoticeError, "Không đọc được tệp")
}

func confirmImport(s Session, out *Outcome) Session {
	if s.Workbook == nil || s.Sheet == "" || s.Submitting {
		out.notify(NoticeWarning, "Vui lòng chọn sheet trước khi nhập")
		return s
	}
	sheet, err := s.Workbook.Sheet(s.Sheet)
	if err != nil {
		notifyStructural(out, err)
		return s
	}
	_, rows, err := sheet.Extract()
	if err != nil {
		notifyStructural(out, err)
		return s
	}
	s.Rows = rows
	s.Form.Items = itemsFromRows(rows, s.PO.Lines)
	s.Errors = Validate(rows, s.PO.Lines, s.Remaining)
	s.Workbook = nil
	s.Preview = nil
	s.Phase = PhaseImportLoaded
	if len(s.Errors) > 0 {
		out.notify(NoticeWarning, "Đã nhập %d dòng, có %d lỗi cần kiểm tra", len(rows), len(s.Errors))
	} else {
		out.notify(NoticeSuccess, "Đã nhập %d dòng hợp lệ", len(rows))
	}
	return s
}

func editField(s Session, ev FieldEdited, out *Outcome) Session {
	if !editable(s) || s.Pending != nil || s.Phase == PhaseReadyToSubmit {
		out.notify(NoticeWarning, "Không thể chỉnh sửa ở bước hiện tại")
		return s
	}
	if ev.Row < 0 || ev.Row >= len(s.Form.Items) {
		out.notify(NoticeError, "Dòng %d không tồn tại", ev.Row+1)
		return s
	}
	switch s.Phase {
	case PhasePOSelected, PhaseManualEntry:
		return editManual(s, ev, out)
	case PhaseImportLoaded:
		return editImported(s, ev, out)
	}
	out.notify(NoticeWarning, "Không thể chỉnh sửa ở bước hiện tại")
	return s
}

func editManual(s Session, ev FieldEdited, out *Outcome) Session {
	items := slices.Clone(s.Form.Items)
	item := items[ev.Row]
	switch ev.Field {
	case FieldReceivedQty:
		qty := ParseAmount(ev.Value)
		if msg, ok := checkManualQuantity(items, ev.Row, qty, s.Remaining); !ok {
			s.EditErrors = withEditError(s.EditErrors, ev.Row, msg)
			return s
		}
		item.ReceivedQty = qty
	case FieldCondition:
		cond, ok := ParseCondition(ev.Value)
		if !ok {
			s.EditErrors = withEditError(s.EditErrors, ev.Row, "Tình trạng hàng không hợp lệ")
			return s
		}
		item.Condition = cond
	case FieldNotes:
		item.Notes = ev.Value
	default:
		out.notify(NoticeWarning, "Không thể sửa cột %s khi nhập thủ công", ev.Field.Label())
		return s
	}
	items[ev.Row] = item
	s.Form.Items = items
	s.EditErrors = withEditError(s.EditErrors, ev.Row, "")
	s.Phase = PhaseManualEntry
	return s
}

func withEditError(current map[int]string, row int, msg string) map[int]string {
	next := make(map[int]string, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	if msg == "" {
		delete(next, row)
	} else {
		next[row] = msg
	}
	if len(next) == 0 {
		return nil
	}
	return next
}

func editImported(s Session, ev FieldEdited, out *Outcome) Session {
	rows := slices.Clone(s.Rows)
	row := rows[ev.Row]
	switch ev.Field {
	case FieldProductName:
		row.ProductName = ev.Value
	case FieldColor:
		row.ColorName = ev.Value
	case FieldSize:
		row.SizeName = ev.Value
	case FieldOrderedQty:
		row.OrderedQty = ParseAmount(ev.Value)
	case FieldReceivedQty:
		row.ReceivedQty = ParseAmount(ev.Value)
	case FieldUnitPrice:
		row.UnitPrice = ParseAmount(ev.Value)
	case FieldNotes:
		row.Notes = ev.Value
	case FieldCondition:
		cond, ok := ParseCondition(ev.Value)
		if !ok {
			out.notify(NoticeError, "Tình trạng hàng không hợp lệ")
			return s
		}
		row.Condition = cond
	default:
		out.notify(NoticeWarning, "Không thể sửa cột %s", ev.Field.Label())
		return s
	}
	rows[ev.Row] = row
	s.Rows = rows
	s.Form.Items = itemsFromRows(rows, s.PO.Lines)
	s.Errors = Validate(rows, s.PO.Lines, s.Remaining)
	return s
}

func requestSubmit(s Session, out *Outcome) Session {
	if s.Submitting {
		out.notify(NoticeWarning, "Phiếu nhập đang được gửi")
		return s
	}
	switch s.Phase {
	case PhasePOSelected, PhaseManualEntry:
		var selected []GoodsReceiptItem
		for _, item := range s.Form.Items {
			if item.ReceivedQty > 0 {
				selected = append(selected, item)
			}
		}
		if len(selected) == 0 {
			out.notify(NoticeError, "Vui lòng chọn ít nhất một sản phẩm để nhập kho")
			return s
		}
		return startSubmit(s, selected, out)
	case PhaseImportLoaded:
		if len(s.Form.Items) == 0 {
			out.notify(NoticeError, "Không có dòng dữ liệu để nhập kho")
			return s
		}
		if len(s.Errors) == 0 {
			return startSubmit(s, s.Form.Items, out)
		}
		bad := RowsWithErrors(s.Errors)
		s.Pending = &SubmitSummary{
			TotalRows:  len(s.Form.Items),
			ValidRows:  len(s.Form.Items) - len(bad),
			ErrorCount: len(s.Errors),
		}
		s.resume = s.Phase
		s.Phase = PhaseReadyToSubmit
		out.notify(NoticeWarning, "Có %d lỗi trên %d dòng. Chỉ %d dòng hợp lệ sẽ được nhập, bạn có muốn tiếp tục?",
			s.Pending.ErrorCount, s.Pending.TotalRows, s.Pending.ValidRows)
		return s
	}
	out.notify(NoticeWarning, "Chưa có dữ liệu để nhập kho")
	return s
}

func confirmSubmit(s Session, out *Outcome) Session {
	if s.Pending == nil || s.Submitting {
		out.notify(NoticeWarning, "Không có yêu cầu nhập kho cần xác nhận")
		return s
	}
	bad := RowsWithErrors(s.Errors)
	var valid []GoodsReceiptItem
	for i, item := range s.Form.Items {
		if !bad[ValidationRow(i)] {
			valid = append(valid, item)
		}
	}
	s.Pending = nil
	if len(valid) == 0 {
		s.Phase = s.resume
		out.notify(NoticeError, "Không có dòng hợp lệ để nhập kho")
		return s
	}
	return startSubmit(s, valid, out)
}

func startSubmit(s Session, items []GoodsReceiptItem, out *Outcome) Session {
	payload := buildPayload(s, items)
	if err := payloadValidator.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "ReceiverID" {
			out.notify(NoticeError, "Vui lòng chọn người nhận hàng")
		} else {
			out.notify(NoticeError, "Phiếu nhập không hợp lệ: %v", err)
		}
		if s.Phase == PhaseReadyToSubmit {
			s.Phase = s.resume
		}
		return s
	}
	if s.Phase != PhaseReadyToSubmit {
		s.resume = s.Phase
	}
	s.Phase = PhaseReadyToSubmit
	s.Submitting = true
	out.Submit = &payload
	return s
}

// buildPayload maps items onto submission lines.
func buildPayload(s Session, items []GoodsReceiptItem) SubmissionPayload {
	prices := make(map[string]int64, len(s.PO.Lines))
	for _, line := range s.PO.Lines {
		prices[line.ID] = line.UnitPrice
	}
	lines := make([]SubmissionLine, 0, len(items))
	for _, item := range items {
		price := item.UnitPrice
		// A validated sheet price equals the line price up to denomination
		// (x10, x100, x1000) or one unit of drift. The line price is the same
		// amount in the order's own scale, so it is the one the backend gets.
		if p, ok := prices[item.LineItemID]; ok {
			price = p
		}
		cond := item.Condition
		if cond == "" {
			cond = ConditionGood
		}
		lines = append(lines, SubmissionLine{
			LineItemID:       item.LineItemID,
			ReceivedQuantity: item.ReceivedQty,
			UnitPrice:        price,
			Condition:        cond,
			Notes:            item.Notes,
		})
	}
	return SubmissionPayload{
		PurchaseOrderID: s.PO.ID,
		ReceiverID:      s.Form.ReceiverID,
		Notes:           s.Form.Notes,
		Lines:           lines,
	}
}

