package receiving

import (
	"errors"
	"strings"
)

// Mode selects how the receipt lines are entered.
type Mode string

const (
	ModeManual Mode = "MANUAL"
	ModeImport Mode = "IMPORT"
)

// Phase of a reconciliation session.
type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhasePOSelected    Phase = "PO_SELECTED"
	PhaseManualEntry   Phase = "MANUAL_ENTRY"
	PhaseImportPending Phase = "IMPORT_PENDING"
	PhaseImportLoaded  Phase = "IMPORT_LOADED"
	PhaseReadyToSubmit Phase = "READY_TO_SUBMIT"
	PhaseSubmitted     Phase = "SUBMITTED"
)

// Condition tags the physical state of received goods.
type Condition string

const (
	ConditionGood      Condition = "good"
	ConditionDamaged   Condition = "damaged"
	ConditionDefective Condition = "defective"
)

// ParseCondition accepts the English tag or its Vietnamese label.
func ParseCondition(raw string) (Condition, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "good", "tốt":
		return ConditionGood, true
	case "damaged", "hư hỏng", "hỏng":
		return ConditionDamaged, true
	case "defective", "lỗi":
		return ConditionDefective, true
	}
	return "", false
}

// PurchaseOrder is the supplier order a receipt is reconciled against.
type PurchaseOrder struct {
	ID           string              `json:"id"`
	Number       string              `json:"number"`
	SupplierName string              `json:"supplierName"`
	Lines        []PurchaseOrderLine `json:"lines"`
}

// PurchaseOrderLine is one ordered product/color/size.
type PurchaseOrderLine struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	ColorName   string `json:"colorName"`
	SizeName    string `json:"sizeName"`
	OrderedQty  int64  `json:"orderedQuantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

// RemainingQuantity is the receivable quantity left on a PO line after all
// previously submitted receipts.
type RemainingQuantity struct {
	LineItemID string `json:"lineItemId"`
	Remaining  int64  `json:"remainingQuantity"`
}

// RemainingState indexes remaining quantities by PO line ID.
type RemainingState map[string]int64

// NewRemainingState builds the lookup from the backend list.
func NewRemainingState(quantities []RemainingQuantity) RemainingState {
	state := make(RemainingState, len(quantities))
	for _, q := range quantities {
		state[q.LineItemID] = q.Remaining
	}
	return state
}

// Lookup reports the remaining quantity for a line when known.
func (s RemainingState) Lookup(lineID string) (int64, bool) {
	if s == nil || lineID == "" {
		return 0, false
	}
	v, ok := s[lineID]
	return v, ok
}

// GoodsReceiptItem is one working row of a receipt in progress.
type GoodsReceiptItem struct {
	LineItemID  string    `json:"lineItemId"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	ColorName   string    `json:"colorName"`
	SizeName    string    `json:"sizeName"`
	OrderedQty  int64     `json:"orderedQuantity"`
	ReceivedQty int64     `json:"receivedQuantity"`
	UnitPrice   int64     `json:"unitPrice"`
	Condition   Condition `json:"condition"`
	Notes       string    `json:"notes"`
	// RowNumber is the spreadsheet-relative row, zero for manual items.
	RowNumber int `json:"rowNumber,omitempty"`
}

// ValidationError is a field-level problem on one imported row.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

// ReceiptForm is the receipt being assembled by a session.
type ReceiptForm struct {
	PurchaseOrderID string             `json:"purchaseOrderId"`
	ReceiverID      string             `json:"receiverId"`
	Notes           string             `json:"notes"`
	Items           []GoodsReceiptItem `json:"items"`
}

// SubmissionLine is one line of the submitted receipt.
type SubmissionLine struct {
	LineItemID       string    `json:"lineItemId" validate:"required"`
	ReceivedQuantity int64     `json:"receivedQuantity" validate:"gt=0"`
	UnitPrice        int64     `json:"unitPrice" validate:"gte=0"`
	Condition        Condition `json:"condition" validate:"oneof=good damaged defective"`
	Notes            string    `json:"notes"`
}

// SubmissionPayload is sent to the backend on confirmation.
type SubmissionPayload struct {
	PurchaseOrderID string           `json:"purchaseOrderId" validate:"required"`
	ReceiverID      string           `json:"receiverId" validate:"required"`
	Notes           string           `json:"notes"`
	Lines           []SubmissionLine `json:"lines" validate:"min=1,dive"`
}

// SubmitResult is the backend answer to a submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// SubmitSummary is shown before submitting an import that carries errors.
type SubmitSummary struct {
	TotalRows  int `json:"totalRows"`
	ValidRows  int `json:"validRows"`
	ErrorCount int `json:"errorCount"`
}

var (
	// ErrUnsupportedFile rejects uploads that are not CSV/XLSX.
	ErrUnsupportedFile = errors.New("receiving: unsupported file type")
	// ErrFileTooLarge rejects uploads over the configured limit.
	ErrFileTooLarge = errors.New("receiving: file too large")
	// ErrNoDataRows indicates a sheet without receipt rows.
	ErrNoDataRows = errors.New("receiving: no data rows")
	// ErrMissingColumns indicates required template columns are absent.
	ErrMissingColumns = errors.New("receiving: missing required columns")
	// ErrSheetNotFound indicates an unknown sheet name.
	ErrSheetNotFound = errors.New("receiving: sheet not found")
	// ErrPurchaseOrderNotFound is returned by backends for unknown POs.
	ErrPurchaseOrderNotFound = errors.New("receiving: purchase order not found")
	// ErrSessionNotFound indicates an unknown or expired session.
	ErrSessionNotFound = errors.New("receiving: session not found")
)
