package receiving

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/receiving/internal/shared"
)

// Backend is the REST API the controller reads orders from and submits
// receipts to.
type Backend interface {
	FetchPurchaseOrder(ctx context.Context, id string) (PurchaseOrder, error)
	FetchRemainingReceivable(ctx context.Context, poID string) ([]RemainingQuantity, error)
	SubmitGoodsReceipt(ctx context.Context, payload SubmissionPayload, idempotencyKey string) (SubmitResult, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder receives receiving metrics.
type Recorder interface {
	ImportProcessed(outcome string, rows int, errs []ValidationError)
	SubmissionFinished(mode Mode, outcome string)
	StaleResponseDiscarded()
}

type noopRecorder struct{}

func (noopRecorder) ImportProcessed(string, int, []ValidationError) {}
func (noopRecorder) SubmissionFinished(Mode, string)                {}
func (noopRecorder) StaleResponseDiscarded()                        {}

var errSubmissionRejected = errors.New("receiving: submission rejected by backend")

// ControllerConfig tunes a Controller.
type ControllerConfig struct {
	MaxUploadBytes int64
	ActorID        int64
}

// Controller runs one reconciliation session against the backend. State
// changes go through Reduce; network calls happen outside the state lock so
// that a newer PO selection never waits behind an older fetch.
type Controller struct {
	mu    sync.Mutex
	state Session
	// selection increments on every PO selection and cancel; a PO response
	// is applied only while its selection is still the latest.
	selection uint64
	// idemKey is reused only while the payload fingerprint is unchanged.
	idemKey     string
	idemPayload string

	backend Backend
	audit   AuditPort
	metrics Recorder
	logger  *slog.Logger
	cfg     ControllerConfig
}

// NewController constructs a controller in the Idle phase.
func NewController(backend Backend, audit AuditPort, metrics Recorder, logger *slog.Logger, cfg ControllerConfig) *Controller {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		state:   Session{Phase: PhaseIdle},
		backend: backend,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// View is the readable session state handed to the UI.
type View struct {
	Phase           Phase             `json:"phase"`
	Mode            Mode              `json:"mode,omitempty"`
	PurchaseOrder   *PurchaseOrder    `json:"purchaseOrder,omitempty"`
	Form            ReceiptForm       `json:"form"`
	Errors          []ValidationError `json:"errors"`
	Remaining       RemainingState    `json:"remaining"`
	RemainingLoaded bool              `json:"remainingLoaded"`
	FileName        string            `json:"fileName,omitempty"`
	Sheets          []string          `json:"sheets,omitempty"`
	Sheet           string            `json:"sheet,omitempty"`
	Preview         []ImportRow       `json:"preview,omitempty"`
	EditErrors      map[int]string    `json:"editErrors,omitempty"`
	Pending         *SubmitSummary    `json:"pendingConfirmation,omitempty"`
	Submitting      bool              `json:"submitting"`
	ReceiptID       string            `json:"receiptId,omitempty"`
}

// State returns a snapshot of the session.
func (c *Controller) State() View {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()
	v := View{
		Phase:           s.Phase,
		Mode:            s.Mode,
		PurchaseOrder:   s.PO,
		Form:            s.Form,
		Errors:          s.Errors,
		Remaining:       s.Remaining,
		RemainingLoaded: s.RemainingLoaded,
		Sheet:           s.Sheet,
		Preview:         s.Preview,
		EditErrors:      s.EditErrors,
		Pending:         s.Pending,
		Submitting:      s.Submitting,
		ReceiptID:       s.ReceiptID,
	}
	if s.Workbook != nil {
		v.FileName = s.Workbook.FileName
		v.Sheets = s.Workbook.SheetNames()
	}
	if v.Errors == nil {
		v.Errors = []ValidationError{}
	}
	return v
}

func (c *Controller) dispatch(e Event) (before, after Session, out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before = c.state
	c.state, out = Reduce(c.state, e)
	if _, ok := e.(Cancelled); ok {
		c.selection++
		c.resetIdempotencyLocked()
	}
	return before, c.state, out
}

func (c *Controller) resetIdempotencyLocked() {
	c.idemKey = ""
	c.idemPayload = ""
}

// beginSelection records a new PO selection and returns its ticket.
func (c *Controller) beginSelection() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection++
	return c.selection
}

// dispatchSelected applies the fetched PO unless a newer selection or a
// cancel happened while it was in flight.
func (c *Controller) dispatchSelected(ticket uint64, po PurchaseOrder) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection != ticket {
		return Outcome{}, false
	}
	var out Outcome
	c.state, out = Reduce(c.state, POSelected{PO: po})
	if out.FetchRemaining != "" {
		c.resetIdempotencyLocked()
	}
	return out, true
}

// SelectPO loads the purchase order, populates the working list and fetches
// the remaining receivable quantities.
func (c *Controller) SelectPO(ctx context.Context, poID string) []Notice {
	ticket := c.beginSelection()
	po, err := c.backend.FetchPurchaseOrder(ctx, poID)
	if !c.isLatestSelection(ticket) {
		c.logger.Debug("stale purchase order response discarded", slog.String("po_id", poID))
		c.metrics.StaleResponseDiscarded()
		return nil
	}
	if err != nil {
		c.logger.Error("fetch purchase order", slog.String("po_id", poID), slog.Any("error", err))
		if errors.Is(err, ErrPurchaseOrderNotFound) {
			return []Notice{{Level: NoticeError, Message: "Không tìm thấy đơn đặt hàng"}}
		}
		return []Notice{{Level: NoticeError, Message: "Không tải được đơn đặt hàng, vui lòng thử lại"}}
	}
	out, ok := c.dispatchSelected(ticket, po)
	if !ok {
		c.logger.Debug("stale purchase order response discarded", slog.String("po_id", poID))
		c.metrics.StaleResponseDiscarded()
		return nil
	}
	notices := out.Notices
	if out.FetchRemaining == "" {
		return notices
	}

	requested := out.FetchRemaining
	quantities, err := c.backend.FetchRemainingReceivable(ctx, requested)
	var next Outcome
	if err != nil {
		c.logger.Error("fetch remaining receivable", slog.String("po_id", requested), slog.Any("error", err))
		_, _, next = c.dispatch(RemainingFailed{POID: requested, Err: err})
	} else {
		_, _, next = c.dispatch(RemainingLoaded{POID: requested, Quantities: quantities})
	}
	if next.Discarded {
		c.logger.Debug("stale remaining response discarded", slog.String("po_id", requested))
		c.metrics.StaleResponseDiscarded()
	}
	return append(notices, next.Notices...)
}

// ChangeMode switches between manual entry and spreadsheet import.
func (c *Controller) ChangeMode(mode Mode) []Notice {
	_, _, out := c.dispatch(ModeChanged{Mode: mode})
	return out.Notices
}

// UploadFile reads an uploaded workbook and offers its sheets.
func (c *Controller) UploadFile(fileName string, data []byte) []Notice {
	wb, err := ReadWorkbook(fileName, data, c.cfg.MaxUploadBytes)
	if err != nil {
		c.logger.Warn("read workbook", slog.String("file", fileName), slog.Any("error", err))
		c.metrics.ImportProcessed("rejected", 0, nil)
		var out Outcome
		notifyStructural(&out, err)
		return out.Notices
	}
	_, _, out := c.dispatch(FileLoaded{Workbook: wb})
	return out.Notices
}

// ChooseSheet selects a sheet and loads its preview.
func (c *Controller) ChooseSheet(name string) []Notice {
	_, after, out := c.dispatch(SheetChosen{Name: name})
	if after.Sheet == "" {
		c.metrics.ImportProcessed("rejected", 0, nil)
	}
	return out.Notices
}

// ConfirmImport replaces the working list with the chosen sheet's rows and
// validates them.
func (c *Controller) ConfirmImport(ctx context.Context) []Notice {
	before, after, out := c.dispatch(ImportConfirmed{})
	if before.Workbook == nil || after.Workbook != nil {
		return out.Notices
	}
	outcome := "valid"
	if len(after.Errors) > 0 {
		outcome = "with_errors"
	}
	c.metrics.ImportProcessed(outcome, len(after.Rows), after.Errors)
	c.recordAudit(ctx, "GRN_IMPORT", after.PO.ID, map[string]any{
		"file":   before.Workbook.FileName,
		"sheet":  before.Sheet,
		"rows":   len(after.Rows),
		"errors": len(after.Errors),
	})
	return out.Notices
}

// EditField applies a user edit to one working item.
func (c *Controller) EditField(row int, field Field, value string) []Notice {
	_, _, out := c.dispatch(FieldEdited{Row: row, Field: field, Value: value})
	return out.Notices
}

// EditHeader sets the receiver and notes of the receipt.
func (c *Controller) EditHeader(receiverID, notes string) []Notice {
	_, _, out := c.dispatch(HeaderEdited{ReceiverID: receiverID, Notes: notes})
	return out.Notices
}

// RequestSubmit submits the receipt, or asks for confirmation when imported
// rows carry errors.
func (c *Controller) RequestSubmit(ctx context.Context) []Notice {
	_, after, out := c.dispatch(SubmitRequested{})
	if out.Submit == nil {
		return out.Notices
	}
	return append(out.Notices, c.submit(ctx, after.Mode, *out.Submit)...)
}

// ConfirmSubmit submits only the error-free rows after the user accepted
// the summary.
func (c *Controller) ConfirmSubmit(ctx context.Context) []Notice {
	_, after, out := c.dispatch(SubmitConfirmed{})
	if out.Submit == nil {
		return out.Notices
	}
	return append(out.Notices, c.submit(ctx, after.Mode, *out.Submit)...)
}

// DeclineSubmit drops a pending confirmation.
func (c *Controller) DeclineSubmit() []Notice {
	_, _, out := c.dispatch(SubmitDeclined{})
	return out.Notices
}

// Cancel discards the session.
func (c *Controller) Cancel() []Notice {
	_, _, out := c.dispatch(Cancelled{})
	return out.Notices
}

func (c *Controller) submit(ctx context.Context, mode Mode, payload SubmissionPayload) []Notice {
	fingerprint, err := payloadFingerprint(payload)
	if err != nil {
		c.logger.Error("fingerprint goods receipt", slog.Any("error", err))
		_, _, out := c.dispatch(SubmitFailed{Err: err})
		return out.Notices
	}
	c.mu.Lock()
	if c.idemKey == "" || c.idemPayload != fingerprint {
		c.idemKey = uuid.NewString()
		c.idemPayload = fingerprint
	}
	key := c.idemKey
	c.mu.Unlock()

	result, err := c.backend.SubmitGoodsReceipt(ctx, payload, key)
	if err == nil && !result.Success {
		err = errSubmissionRejected
	}
	if err != nil {
		c.logger.Error("submit goods receipt", slog.String("po_id", payload.PurchaseOrderID), slog.Any("error", err))
		c.metrics.SubmissionFinished(mode, "failed")
		if errors.Is(err, errSubmissionRejected) {
			c.mu.Lock()
			c.resetIdempotencyLocked()
			c.mu.Unlock()
		}
		_, _, out := c.dispatch(SubmitFailed{Err: err})
		return out.Notices
	}

	_, _, out := c.dispatch(SubmitSucceeded{Result: result})
	c.mu.Lock()
	c.resetIdempotencyLocked()
	c.mu.Unlock()
	c.metrics.SubmissionFinished(mode, "submitted")
	c.recordAudit(ctx, "GRN_SUBMIT", payload.PurchaseOrderID, map[string]any{
		"receipt_id": result.ID,
		"mode":       string(mode),
		"lines":      len(payload.Lines),
	})
	return out.Notices
}

func (c *Controller) isLatestSelection(ticket uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection == ticket
}

// payloadFingerprint identifies a submission body. A retry keeps its
// idempotency key only while the body it sends is identical.
func payloadFingerprint(payload SubmissionPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("receiving: encode payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Controller) recordAudit(ctx context.Context, action, poID string, meta map[string]any) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Record(ctx, shared.AuditLog{ActorID: c.cfg.ActorID, Action: action, Entity: "goods_receipt", EntityID: fmt.Sprintf("PO:%s", poID), Meta: meta}); err != nil {
		c.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
