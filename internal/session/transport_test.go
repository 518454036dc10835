package session_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MegaGrindStone/stream-chat/internal/models"
	"github.com/MegaGrindStone/stream-chat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Open(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "hello & welcome?", r.URL.Query().Get("message"))
		assert.Equal(t, session.StreamContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, session.StreamContentType, r.Header.Get("Accept"))

		w.Header().Set("Content-Type", session.StreamContentType)
		fmt.Fprint(w, "data: {\"data\":\"H\"}\n\n")
		fmt.Fprint(w, "data: plain\ndata: text\n\n")
		fmt.Fprint(w, "event: end\ndata: completed\n\n")
	}))
	defer srv.Close()

	tr := session.NewHTTPTransport(srv.URL+"/chat", srv.Client(), 0)
	stream, err := tr.Open(context.Background(), "hello & welcome?")
	require.NoError(t, err)
	defer stream.Close()

	var frames []models.Frame
	var lastErr error
	for f, err := range stream.Frames() {
		if err != nil {
			lastErr = err
			break
		}
		frames = append(frames, f)
	}

	assert.Equal(t, []models.Frame{
		{Data: `{"data":"H"}`},
		{Data: "plain\ntext"},
		{Type: "end", Data: "completed"},
	}, frames)
	assert.ErrorIs(t, lastErr, io.EOF)
}

func TestHTTPTransport_LargeCumulativeEvent(t *testing.T) {
	answer := strings.Repeat("a", 70<<10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", session.StreamContentType)
		fmt.Fprint(w, "data: {\"data\":\"short\"}\n\n")
		fmt.Fprintf(w, "data: {\"data\":%q}\n\n", answer)
		fmt.Fprint(w, "event: end\ndata: completed\n\n")
	}))
	defer srv.Close()

	tests := []struct {
		name         string
		maxEventSize int
		wantFrames   int
		wantEOF      bool
	}{
		{name: "default limit", maxEventSize: 0, wantFrames: 3, wantEOF: true},
		{name: "configured limit", maxEventSize: 1 << 20, wantFrames: 3, wantEOF: true},
		{name: "limit below event size", maxEventSize: 1 << 10, wantFrames: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := session.NewHTTPTransport(srv.URL, srv.Client(), tt.maxEventSize)
			stream, err := tr.Open(context.Background(), "long")
			require.NoError(t, err)
			defer stream.Close()

			var frames []models.Frame
			var lastErr error
			for f, err := range stream.Frames() {
				if err != nil {
					lastErr = err
					break
				}
				frames = append(frames, f)
			}

			require.Len(t, frames, tt.wantFrames)
			require.Error(t, lastErr)
			assert.Equal(t, tt.wantEOF, errors.Is(lastErr, io.EOF))
			if tt.wantFrames > 1 {
				ev, err := models.ParseStreamEvent(frames[1].Data)
				require.NoError(t, err)
				assert.Equal(t, answer, ev.Data)
			}
		})
	}
}

func TestHTTPTransport_OpenErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing message", http.StatusBadRequest)
	}))
	defer srv.Close()

	t.Run("unexpected status", func(t *testing.T) {
		tr := session.NewHTTPTransport(srv.URL, srv.Client(), 0)
		_, err := tr.Open(context.Background(), "hi")
		require.ErrorIs(t, err, session.ErrUnexpectedStatus)

		var reqErr *session.RequestError
		assert.False(t, errors.As(err, &reqErr))
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		tr := session.NewHTTPTransport("://no-scheme", nil, 0)
		_, err := tr.Open(context.Background(), "hi")

		var reqErr *session.RequestError
		require.ErrorAs(t, err, &reqErr)
	})

	t.Run("connection refused", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		tr := session.NewHTTPTransport(url, nil, 0)
		_, err := tr.Open(context.Background(), "hi")
		require.Error(t, err)

		var reqErr *session.RequestError
		assert.False(t, errors.As(err, &reqErr))
	})
}
