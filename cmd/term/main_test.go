package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/stream-chat/internal/conversation"
	"github.com/MegaGrindStone/stream-chat/internal/models"
	"github.com/MegaGrindStone/stream-chat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStream sends one partial answer and then stays open until it is closed.
type openStream struct {
	once   sync.Once
	closed chan struct{}
}

type openTransport struct{}

func TestRun_ClearWhileStreaming(t *testing.T) {
	store := conversation.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	controller := session.NewController(store, openTransport{}, logger)
	defer controller.Cancel()

	pr, pw := io.Pipe()
	defer pw.Close()

	errs := make(chan error, 1)
	go func() {
		errs <- run(context.Background(), bufio.NewScanner(pr), store, controller)
	}()

	fmt.Fprintln(pw, "Hello")
	require.Eventually(t, func() bool {
		m, ok := store.Trailing()
		return ok && m.Text == "Hel" && store.Pending()
	}, 2*time.Second, 10*time.Millisecond)

	fmt.Fprintln(pw, "ignored while pending")
	fmt.Fprintln(pw, clearCommand)
	require.Eventually(t, func() bool {
		return !store.Pending() && len(store.Messages()) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, controller.Current())

	fmt.Fprintln(pw, "Again")
	require.Eventually(t, func() bool {
		return store.Pending() && len(store.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Again", store.Messages()[0].Text)

	fmt.Fprintln(pw, quitCommand)
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after /quit")
	}
}

func (openTransport) Open(_ context.Context, _ string) (session.Stream, error) {
	return &openStream{closed: make(chan struct{})}, nil
}

func (s *openStream) Frames() iter.Seq2[models.Frame, error] {
	return func(yield func(models.Frame, error) bool) {
		if !yield(models.Frame{Data: `{"data":"Hel"}`}, nil) {
			return
		}
		<-s.closed
		yield(models.Frame{}, errors.New("stream closed"))
	}
}

func (s *openStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
