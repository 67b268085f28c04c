package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/service"
	id "evidentia/pkg/domain"
	dErrors "evidentia/pkg/domain-errors"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/httputil"
	"evidentia/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const defaultMaxUploadBytes = 64 << 20

// Service is the evidence kernel as seen by HTTP.
type Service interface {
	CreateDraft(ctx context.Context, in service.CreateDraftInput) (*models.DraftSnapshot, error)
	UpdateDraft(ctx context.Context, draftID id.DraftID, patch models.DraftPatch) (*models.DraftSnapshot, error)
	AttachFile(ctx context.Context, draftID id.DraftID, r io.Reader, filename, contentType string) (*models.Attachment, error)
	GetSnapshot(ctx context.Context, draftID id.DraftID) (*models.DraftSnapshot, error)
	QuarantineDraft(ctx context.Context, draftID id.DraftID, reason string) (*models.DraftSnapshot, error)
	Seal(ctx context.Context, draftID id.DraftID) (*service.SealResult, error)
	PushEvidence(ctx context.Context, in service.CreateDraftInput) (*service.SealResult, error)
	ApplyCommand(ctx context.Context, cmd models.Command) (*models.CommandResult, error)
	Supersede(ctx context.Context, req models.SupersedeRequest) (*models.SupersessionReceipt, error)
	GetEvidence(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error)
	AuditTrail(ctx context.Context, evidenceID id.EvidenceID) ([]audit.Event, error)
	Lineage(ctx context.Context, evidenceID id.EvidenceID) ([]*models.Evidence, error)
	Verify(ctx context.Context, evidenceID id.EvidenceID) (*models.VerificationReport, error)
}

// Handler wires evidence endpoints to the kernel.
type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

// WithMaxUploadBytes caps a single attachment upload.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: svc, logger: logger, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the evidence routes. Authentication middleware is applied
// by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/drafts", func(r chi.Router) {
		r.Post("/", h.HandleCreateDraft)
		r.Get("/{draftID}", h.HandleGetSnapshot)
		r.Patch("/{draftID}", h.HandleUpdateDraft)
		r.Post("/{draftID}/attachments", h.HandleAttachFile)
		r.Post("/{draftID}/seal", h.HandleSeal)
		r.Post("/{draftID}/quarantine", h.HandleQuarantine)
	})
	r.Post("/v1/ingest/api-push", h.HandlePush)
	r.Post("/v1/commands", h.HandleCommand)
	r.Route("/v1/evidence/{evidenceID}", func(r chi.Router) {
		r.Get("/", h.HandleGetEvidence)
		r.Get("/audit", h.HandleAuditTrail)
		r.Get("/lineage", h.HandleLineage)
		r.Get("/verify", h.HandleVerify)
		r.Post("/supersede", h.HandleSupersede)
	})
}

func (h *Handler) HandleCreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DraftRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	snap, err := h.service.CreateDraft(ctx, req.Input())
	if err != nil {
		h.fail(ctx, w, "create draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}

func (h *Handler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, ok := h.draftID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.DraftPatch](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	snap, err := h.service.UpdateDraft(ctx, draftID, *req)
	if err != nil {
		h.fail(ctx, w, "update draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleAttachFile streams the multipart "file" part straight into storage;
// the body is never buffered whole.
func (h *Handler) HandleAttachFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, ok := h.draftID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart/form-data body required"))
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		h.logger.WarnContext(ctx, "attachment upload rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart field \"file\" is required"))
		return
	}
	defer part.Close()

	att, err := h.service.AttachFile(ctx, draftID, part, part.FileName(), part.Header.Get("Content-Type"))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = dErrors.New(dErrors.CodeBadRequest, "attachment exceeds the upload limit")
		}
		h.fail(ctx, w, "attach file", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, att)
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, ok := h.draftID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.GetSnapshot(ctx, draftID)
	if err != nil {
		h.fail(ctx, w, "get draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleQuarantine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, ok := h.draftID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[QuarantineRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	snap, err := h.service.QuarantineDraft(ctx, draftID, req.Reason)
	if err != nil {
		h.fail(ctx, w, "quarantine draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, ok := h.draftID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Seal(ctx, draftID)
	if err != nil {
		h.fail(ctx, w, "seal draft", err)
		return
	}
	h.writeSeal(w, res)
}

func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DraftRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.PushEvidence(ctx, req.Input())
	if err != nil {
		h.fail(ctx, w, "api push", err)
		return
	}
	h.writeSeal(w, res)
}

func (h *Handler) writeSeal(w http.ResponseWriter, res *service.SealResult) {
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, SealResponse{Evidence: res.Evidence, Idempotent: res.Replayed})
}

func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CommandRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.ApplyCommand(ctx, req.Command())
	if err != nil {
		h.fail(ctx, w, "apply command", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleSupersede(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SupersedeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	receipt, err := h.service.Supersede(ctx, req.Request(evidenceID))
	if err != nil {
		h.fail(ctx, w, "supersede evidence", err)
		return
	}
	status := http.StatusCreated
	if receipt.Idempotent {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, receipt)
}

func (h *Handler) HandleGetEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	e, err := h.service.GetEvidence(ctx, evidenceID)
	if err != nil {
		h.fail(ctx, w, "get evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	events, err := h.service.AuditTrail(ctx, evidenceID)
	if err != nil {
		h.fail(ctx, w, "audit trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{EvidenceID: evidenceID, Events: events})
}

func (h *Handler) HandleLineage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	chain, err := h.service.Lineage(ctx, evidenceID)
	if err != nil {
		h.fail(ctx, w, "lineage", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromChain(evidenceID, chain))
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evidenceID, ok := h.evidenceID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Verify(ctx, evidenceID)
	if err != nil {
		h.fail(ctx, w, "verify evidence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) draftID(w http.ResponseWriter, r *http.Request) (id.DraftID, bool) {
	draftID, err := id.ParseDraftID(chi.URLParam(r, "draftID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DraftID{}, false
	}
	return draftID, true
}

func (h *Handler) evidenceID(w http.ResponseWriter, r *http.Request) (id.EvidenceID, bool) {
	evidenceID, err := id.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EvidenceID{}, false
	}
	return evidenceID, true
}

// fail logs at a level matching the error class and writes the envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"code", code,
		"error", err,
	}
	if dErrors.HTTPStatus(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "evidence request failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "evidence request refused", attrs...)
	}
	httputil.WriteError(w, err)
}
