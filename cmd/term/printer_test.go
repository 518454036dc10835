package main

import (
	"bytes"
	"testing"

	"github.com/MegaGrindStone/stream-chat/internal/conversation"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	p := newPrinter(&out)

	store := conversation.NewStore()
	store.Subscribe(p.observe)

	_, _, err := store.AppendExchange("Hi")
	require.NoError(t, err)
	store.SetPending(true)
	for _, text := range []string{"H", "He", "Hel"} {
		store.UpdateTrailingAssistantText(text)
	}
	store.AppendTrailingAssistantNote("[error: rate limited]")
	store.UpdateTrailingAssistantText("ok")
	store.SetPending(false)
	store.Clear()

	assert.Equal(t, "you> Hi\nai> Hel\n[error: rate limited]\n~ ok\n(history cleared)\n", out.String())
}
