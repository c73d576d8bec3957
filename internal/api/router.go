package api

import "net/http"

func Router(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /contacts/import", h.ImportContacts)
	mux.HandleFunc("GET /contacts/{id}", h.GetContact)

	mux.HandleFunc("GET /templates", h.ListTemplates)

	mux.HandleFunc("POST /events", h.CreateEvent)
	mux.HandleFunc("POST /events/{id}/send", h.SendEvent)
	mux.HandleFunc("GET /events/{id}/report", h.EventReport)

	mux.HandleFunc("GET /recipients/{id}/logs", h.RecipientLogs)
	mux.HandleFunc("GET /messages/{providerMessageId}", h.GetMessage)

	mux.HandleFunc("POST /voice-provider/callback", h.VoiceCallback)
	mux.HandleFunc("POST /email-provider/callback", h.StatusCallback("email"))
	mux.HandleFunc("POST /sms-provider/callback", h.StatusCallback("sms"))

	mux.HandleFunc("GET /scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /scheduler/stop", h.SchedulerStop)
	mux.HandleFunc("POST /scheduler/run", h.SchedulerRun)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("schoolwire"))
	})

	return mux
}
