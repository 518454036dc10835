package handlers

import (
	"log/slog"
	"net/http"
)

// HandleChats starts a stream session for the "message" form field. The session outlives the request:
// the answer reaches the browser through the SSE endpoint, not through this response.
//
// A blank message, or a message sent while a response is still pending, is ignored and answered with
// 204 No Content. An accepted message is answered with 202 Accepted.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	s, ok := m.sessions.Start(m.ctx, msg)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	m.logger.Debug("Session started", slog.String("assistantID", s.AssistantID()))
	w.WriteHeader(http.StatusAccepted)
}

// HandleClear cancels the open session, if any, and then empties the transcript.
func (m Main) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.sessions.Cancel()
	m.store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE streams transcript updates to the browser.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}
