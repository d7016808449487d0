package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/pkg/game"
)

func TestVerifyMultimodal_Text(t *testing.T) {
	mock := NewMockProvider(`{"verdict": "approved", "reason": "ran 5k", "detected_labels": ["run"]}`)
	g := newTestGateway(mock)

	v, err := g.VerifyMultimodal(context.Background(), Evidence{
		Mode:       game.VerifyText,
		QuestTitle: "晨跑 5 公里",
		Text:       "I ran 5k this morning",
		Keywords:   []string{"run", "跑"},
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictApproved, v.Verdict)
	assert.Equal(t, []string{"run"}, v.DetectedLabels)

	call := mock.LastCall()
	assert.Contains(t, call.User, "I ran 5k this morning")
	assert.Contains(t, call.User, "run, 跑")
	assert.Empty(t, call.Image)
}

func TestVerifyMultimodal_UnknownVerdictIsUncertain(t *testing.T) {
	mock := NewMockProvider(`{"verdict": "MAYBE", "reason": "blurry"}`)
	v, err := newTestGateway(mock).VerifyMultimodal(context.Background(), Evidence{Mode: game.VerifyText, QuestTitle: "q", Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, VerdictUncertain, v.Verdict)
}

func TestVerifyMultimodal_ImageUsesVisionProvider(t *testing.T) {
	text := NewMockProvider(`{"verdict": "REJECTED", "reason": "wrong provider"}`)
	vision := NewMockProvider(`{"verdict": "REJECTED", "reason": "no salad visible", "follow_up": "Can you show the plate?"}`)
	g := NewGateway(text, vision, fastConfig(), logger.Discard())

	img := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	v, err := g.VerifyMultimodal(context.Background(), Evidence{Mode: game.VerifyImage, QuestTitle: "吃一份沙拉", Image: img})
	require.NoError(t, err)
	assert.Equal(t, VerdictRejected, v.Verdict)
	assert.Equal(t, "no salad visible", v.Reason)
	assert.Equal(t, 0, text.CallCount())
	assert.Equal(t, img, vision.LastCall().Image)
}

func TestVerifyMultimodal_Errors(t *testing.T) {
	_, err := NewGateway(nil, nil, fastConfig(), logger.Discard()).
		VerifyMultimodal(context.Background(), Evidence{Mode: game.VerifyText})
	assert.Equal(t, game.ErrAIOffline, game.KindOf(err))

	_, err = newTestGateway(NewMockProvider("{}")).
		VerifyMultimodal(context.Background(), Evidence{Mode: game.VerifyLocation})
	assert.Equal(t, game.ErrInvalidArgument, game.KindOf(err))
}
