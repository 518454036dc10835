package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/stream-chat/internal/models"
)

type message struct {
	ID        string
	Role      string
	Lines     []string
	Content   string
	Timestamp time.Time

	StreamingState string
}

type homePageData struct {
	Messages []message
	Pending  bool

	// Typing is set when a response is awaited but no assistant message is there to show it.
	Typing bool
}

const (
	streamingStateLoading   = "loading"
	streamingStateStreaming = "streaming"
	streamingStateEnded     = "ended"
)

// HandleHome renders the chat page with the current transcript.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := newPageData(m.store.Messages(), m.store.Pending())
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func newPageData(messages []models.Message, pending bool) homePageData {
	msgs := make([]message, len(messages))
	for i, msg := range messages {
		msgs[i] = message{
			ID:             msg.ID,
			Role:           msg.Role(),
			Lines:          strings.Split(msg.Text, "\n"),
			Content:        msg.Text,
			Timestamp:      msg.Timestamp,
			StreamingState: streamingState(messages, i, pending),
		}
	}

	return homePageData{
		Messages: msgs,
		Pending:  pending,
		Typing:   pending && len(messages) > 0 && messages[len(messages)-1].IsUser,
	}
}

// streamingState derives the indicator shown for the i-th message: only the trailing assistant message
// of a pending conversation is loading (nothing received yet) or streaming.
func streamingState(messages []models.Message, i int, pending bool) string {
	if !pending || i != len(messages)-1 || messages[i].IsUser {
		return streamingStateEnded
	}
	if messages[i].Text == "" {
		return streamingStateLoading
	}
	return streamingStateStreaming
}

// renderMarkdown is exposed to the templates to render assistant messages.
func renderMarkdown(text string) (template.HTML, error) {
	var sb strings.Builder
	if err := markdown.Convert([]byte(text), &sb); err != nil {
		return "", err
	}
	return template.HTML(sb.String()), nil
}
