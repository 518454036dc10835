package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	streamchat "github.com/MegaGrindStone/stream-chat"
	"github.com/MegaGrindStone/stream-chat/internal/conversation"
	"github.com/MegaGrindStone/stream-chat/internal/session"
	"github.com/tmaxmax/go-sse"
)

// Sessions starts and cancels the stream sessions that fill the conversation store.
type Sessions interface {
	Start(ctx context.Context, requestText string) (*session.Session, bool)
	Cancel()
}

// Main serves the single chat page. It renders the conversation store, forwards user input to the
// session controller, and pushes the re-rendered transcript to the browser over server-sent events
// whenever the store changes.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	store    *conversation.Store
	sessions Sessions

	// ctx outlives the HTTP requests that start sessions; Shutdown cancels it.
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	logger *slog.Logger
}

// SSE event types for real-time updates.
var (
	transcriptSSEType = sse.Type("transcript")
	closeSSEType      = sse.Type("closeChat")
)

const errLoggerKey = "err"

// NewMain creates a new Main instance for the given store and session controller. It parses the HTML
// templates from the embedded filesystem and subscribes to the store so that every mutation is
// published to the connected browsers.
func NewMain(store *conversation.Store, sessions Sessions, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
	}).ParseFS(
		streamchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := Main{
		sseSrv:    &sse.Server{},
		templates: tmpl,
		store:     store,
		sessions:  sessions,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "handlers")),
	}
	m.unsubscribe = store.Subscribe(m.publishTranscript)

	return m, nil
}

// Shutdown cancels the open session, broadcasts a close message to all connected clients and waits up
// to 5 seconds for the SSE connections to terminate. After the timeout, any remaining connections are
// forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.unsubscribe()
	m.sessions.Cancel()
	m.cancel()

	e := &sse.Message{Type: closeSSEType}
	// SSE events must carry data, even the close event
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func (m Main) publishTranscript(ch conversation.Change) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "chatbox", newPageData(ch.Messages, ch.Pending)); err != nil {
		m.logger.Error("Failed to render transcript",
			slog.String("change", ch.Kind.String()),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: transcriptSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg); err != nil {
		m.logger.Error("Failed to publish transcript",
			slog.String("change", ch.Kind.String()),
			slog.String(errLoggerKey, err.Error()))
	}
}
