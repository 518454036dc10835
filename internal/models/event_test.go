package models_test

import (
	"testing"

	"github.com/MegaGrindStone/stream-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    models.StreamEvent
		wantErr bool
	}{
		{name: "content", data: `{"data":"Hello"}`, want: models.StreamEvent{Data: "Hello"}},
		{name: "end", data: `{"event":"end","data":"completed"}`, want: models.StreamEvent{Event: "end", Data: "completed"}},
		{name: "error", data: ` {"event":"error","data":"rate limited"}`, want: models.StreamEvent{Event: "error", Data: "rate limited"}},
		{name: "unknown fields", data: `{"data":"x","id":3}`, want: models.StreamEvent{Data: "x"}},
		{name: "plain text", data: `Hello there`, wantErr: true},
		{name: "json string", data: `"Hello"`, wantErr: true},
		{name: "json null", data: `null`, wantErr: true},
		{name: "broken object", data: `{"data":`, wantErr: true},
		{name: "wrong data type", data: `{"data":5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.ParseStreamEvent(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrameNamed(t *testing.T) {
	assert.False(t, models.Frame{}.Named())
	assert.False(t, models.Frame{Type: "message"}.Named())
	assert.True(t, models.Frame{Type: "end"}.Named())
}

func TestMessageRole(t *testing.T) {
	assert.Equal(t, "user", models.NewUserMessage("hi").Role())
	assert.Equal(t, "assistant", models.NewAssistantMessage().Role())
}
