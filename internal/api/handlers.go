package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/model"
	"github.com/LeventeLantos/schoolwire/internal/registry"
	"github.com/LeventeLantos/schoolwire/internal/scheduler"
	"github.com/LeventeLantos/schoolwire/internal/service"
)

type Handler struct {
	notifier  *service.Notifier
	sched     *scheduler.Scheduler
	validate  *validator.Validate
	ledgerTag string
	log       zerolog.Logger
}

func NewHandler(n *service.Notifier, s *scheduler.Scheduler, ledgerBackend string, log zerolog.Logger) *Handler {
	return &Handler{
		notifier:  n,
		sched:     s,
		validate:  validator.New(),
		ledgerTag: ledgerBackend,
		log:       log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ledger": h.ledgerTag})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Stats())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

// SchedulerRun transmits one batch now, whether or not the loop is running.
func (h *Handler) SchedulerRun(w http.ResponseWriter, r *http.Request) {
	handled := h.sched.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"handled": handled})
}

func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var payload []model.ContactInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of contacts")
		return
	}

	if verr := h.validateContacts(payload); verr != nil {
		h.writeErr(w, verr)
		return
	}

	n, err := h.notifier.ImportContacts(r.Context(), payload)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"imported": n})
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.notifier.Contact(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contact": c})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.notifier.Templates(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

type createEventRequest struct {
	TemplateID   string                    `json:"templateId"`
	Audience     model.AudienceFilter      `json:"audience"`
	Overrides    model.Overrides           `json:"overrides"`
	ScheduledFor model.Optional[time.Time] `json:"scheduledFor"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeErr(w, fieldErrors(err, ""))
		return
	}

	ev, err := h.notifier.CreateEvent(r.Context(), registry.CreateInput{
		TemplateID:   req.TemplateID,
		Audience:     req.Audience,
		Overrides:    req.Overrides,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": ev})
}

type sendEventRequest struct {
	Channels []model.Channel `json:"channels"`
}

func (h *Handler) SendEvent(w http.ResponseWriter, r *http.Request) {
	var req sendEventRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	queued, err := h.notifier.SendEvent(r.Context(), r.PathValue("id"), req.Channels)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queued": queued})
}

func (h *Handler) EventReport(w http.ResponseWriter, r *http.Request) {
	ev, sum, err := h.notifier.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev, "summary": sum})
}

func (h *Handler) RecipientLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.notifier.RecipientLogs(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if logs == nil {
		logs = []model.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.notifier.Message(r.Context(), r.PathValue("providerMessageId"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": rec})
}

type voiceCallback struct {
	ProviderMessageID string                       `json:"providerMessageId"`
	Status            model.Optional[model.Status] `json:"status"`
	Answered          model.Optional[bool]         `json:"answered"`
}

type statusCallback struct {
	ProviderMessageID string                       `json:"providerMessageId"`
	Status            model.Optional[model.Status] `json:"status"`
}

func (h *Handler) VoiceCallback(w http.ResponseWriter, r *http.Request) {
	var cb voiceCallback
	if err := decodeOptional(r, &cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	h.applyCallback(w, r, "voice", cb.ProviderMessageID, model.StatusUpdate{
		Status:   cb.Status,
		Answered: cb.Answered,
	})
}

// StatusCallback serves providers that report status only (email, sms).
func (h *Handler) StatusCallback(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cb statusCallback
		if err := decodeOptional(r, &cb); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		h.applyCallback(w, r, provider, cb.ProviderMessageID, model.StatusUpdate{Status: cb.Status})
	}
}

func (h *Handler) applyCallback(w http.ResponseWriter, r *http.Request, provider, id string, upd model.StatusUpdate) {
	if _, err := h.notifier.ApplyCallback(r.Context(), provider, id, upd); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) validateContacts(in []model.ContactInput) error {
	verr := errs.NewValidationError()
	for i, c := range in {
		prefix := fmt.Sprintf("contacts[%d]", i)
		if err := h.validate.Struct(c); err != nil {
			for field, msgs := range fieldErrors(err, prefix).Fields {
				for _, m := range msgs {
					verr.Add(field, m)
				}
			}
		}
		if email, ok := c.Email.Get(); ok && email != "" {
			if err := h.validate.Var(email, "email"); err != nil {
				verr.Add(prefix+".email", "must be a valid email address")
			}
		}
		if phone, ok := c.Phone.Get(); ok && len(phone) > 32 {
			verr.Add(prefix+".phone", "must be at most 32 characters")
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func fieldErrors(err error, prefix string) *errs.ValidationError {
	verr := errs.NewValidationError()
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		verr.Add(prefix, err.Error())
		return verr
	}
	for _, fe := range ves {
		field := fe.Namespace()
		if prefix != "" {
			field = prefix + "." + fe.Field()
		}
		verr.Add(field, fmt.Sprintf("failed on the '%s' rule", fe.Tag()))
	}
	return verr
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, errs.ErrUnknownTemplate):
		writeError(w, http.StatusBadRequest, "Unknown templateId")
	case errors.Is(err, errs.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, errs.ErrLogNotFound):
		writeError(w, http.StatusNotFound, "Log not found")
	case errors.Is(err, errs.ErrContactNotFound):
		writeError(w, http.StatusNotFound, "Contact not found")
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeOptional decodes a JSON body, treating an empty body as "{}".
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
