package receiving

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/receiving/internal/platform/httpx"
)

// Handler exposes reconciliation sessions over JSON.
type Handler struct {
	logger     *slog.Logger
	registry   *Registry
	validate   *validator.Validate
	maxUpload  int64
	uploadRate int
}

// HandlerConfig tunes upload handling.
type HandlerConfig struct {
	MaxUploadBytes      int64
	UploadRatePerMinute int
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		logger:     logger,
		registry:   registry,
		validate:   validator.New(),
		maxUpload:  cfg.MaxUploadBytes,
		uploadRate: cfg.UploadRatePerMinute,
	}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sessions", h.openSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.closeSession)
		r.Post("/po", h.selectPO)
		r.Post("/mode", h.changeMode)
		r.Group(func(r chi.Router) {
			if h.uploadRate > 0 {
				r.Use(httprate.LimitByIP(h.uploadRate, time.Minute))
			}
			r.Post("/upload", h.upload)
		})
		r.Post("/sheet", h.chooseSheet)
		r.Post("/import/confirm", h.confirmImport)
		r.Patch("/items/{row}", h.editItem)
		r.Put("/header", h.editHeader)
		r.Post("/submit", h.requestSubmit)
		r.Post("/submit/confirm", h.confirmSubmit)
		r.Post("/submit/decline", h.declineSubmit)
	})
}

type sessionResponse struct {
	SessionID string   `json:"sessionId"`
	State     View     `json:"state"`
	Notices   []Notice `json:"notices"`
}

type selectPORequest struct {
	PurchaseOrderID string `json:"purchaseOrderId" validate:"required"`
}

type modeRequest struct {
	Mode Mode `json:"mode" validate:"required,oneof=MANUAL IMPORT"`
}

type sheetRequest struct {
	Name string `json:"name" validate:"required"`
}

type editItemRequest struct {
	Field Field  `json:"field" validate:"required"`
	Value string `json:"value"`
}

type headerRequest struct {
	ReceiverID string `json:"receiverId"`
	Notes      string `json:"notes" validate:"max=1000"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, id uuid.UUID, ctrl *Controller, notices []Notice) {
	if notices == nil {
		notices = []Notice{}
	}
	httpx.JSON(w, status, sessionResponse{SessionID: id.String(), State: ctrl.State(), Notices: notices})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (uuid.UUID, *Controller, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: session id", httpx.ErrNotFound))
		return uuid.Nil, nil, false
	}
	ctrl, err := h.registry.Get(id)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
		return uuid.Nil, nil, false
	}
	return id, ctrl, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl := h.registry.Open()
	h.logger.Info("receiving session opened", slog.String("session_id", id.String()))
	h.respond(w, http.StatusCreated, id, ctrl, nil)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, nil)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl.Cancel()
	h.registry.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectPO(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectPORequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.SelectPO(r.Context(), req.PurchaseOrderID))
}

func (h *Handler) changeMode(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.ChangeMode(req.Mode))
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	// Multipart overhead on top of the file itself.
	limit := h.maxUpload + 1<<20
	if r.ContentLength > limit {
		httpx.RespondError(w, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrPayloadTooLarge, h.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrPayloadTooLarge, h.maxUpload))
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: file field required", httpx.ErrValidation))
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("read upload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.UploadFile(header.Filename, data))
}

func (h *Handler) chooseSheet(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req sheetRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.ChooseSheet(req.Name))
}

func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.ConfirmImport(r.Context()))
}

func (h *Handler) editItem(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: row must be a number", httpx.ErrValidation))
		return
	}
	var req editItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.EditField(row, req.Field, req.Value))
}

func (h *Handler) editHeader(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req headerRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.EditHeader(req.ReceiverID, req.Notes))
}

func (h *Handler) requestSubmit(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.RequestSubmit(r.Context()))
}

func (h *Handler) confirmSubmit(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.ConfirmSubmit(r.Context()))
}

func (h *Handler) declineSubmit(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, id, ctrl, ctrl.DeclineSubmit())
}
