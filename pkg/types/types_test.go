package types

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxGeometry(t *testing.T) {
	b := Box(10, 20, 110, 70)

	assert.True(t, b.Valid())
	assert.Equal(t, 100, b.Width())
	assert.Equal(t, 50, b.Height())
	assert.Equal(t, image.Pt(60, 45), b.Center())
	assert.Equal(t, image.Rect(10, 20, 110, 70), b.Rect())
	assert.Equal(t, b, FromRect(b.Rect()))
	assert.Equal(t, Box(15, 15, 115, 65), b.Translate(5, -5))
	assert.False(t, b.Empty())
	assert.True(t, Box(5, 5, 5, 9).Empty())
	assert.False(t, Box(10, 0, 5, 5).Valid())
}

func TestReasonKinds(t *testing.T) {
	tests := []struct {
		reason Reason
		kind   Kind
	}{
		{ReasonArrowNotFound, PerceptionNotFound},
		{ReasonFleetsAreaNotFound, PerceptionNotFound},
		{ReasonEliteNotFound, PerceptionNotFound},
		{ReasonBattleButtonNotFound, PerceptionNotFound},
		{ReasonBattleCountUnreadable, ExtractionUnreadable},
		{ReasonSetOutTimeUnreadable, ExtractionUnreadable},
		{ReasonFleetConflict, MissionConflict},
		{ReasonOutOfLevels, ResourceExhausted},
		{ReasonOutOfTroops, ResourceExhausted},
		{ReasonUnsupportedView, ConfigurationUnsupported},
		{Reason("bogus"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.reason.Kind(), string(tt.reason))
	}
}

func TestErrorMatching(t *testing.T) {
	base := NewError(ReasonAttackButtonNotFound, "attack", "threshold %.2f", 0.2)
	wrapped := fmt.Errorf("hunt cycle: %w", base)

	assert.Equal(t, ReasonAttackButtonNotFound, ReasonOf(wrapped))
	assert.Equal(t, PerceptionNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, PerceptionNotFound))
	assert.True(t, errors.Is(wrapped, Sentinel(ReasonAttackButtonNotFound)))
	assert.False(t, errors.Is(wrapped, Sentinel(ReasonArrowNotFound)))
	assert.Equal(t, "attack: attack_button_not_found: threshold 0.20", base.Error())

	plain := errors.New("boom")
	assert.Equal(t, ReasonNone, ReasonOf(plain))
	assert.False(t, IsKind(nil, KindUnknown))

	cause := errors.New("tesseract failed")
	we := WrapError(ReasonTextUnreadable, "ocr", cause)
	assert.ErrorIs(t, we, cause)
}

func TestOutcomeConstructors(t *testing.T) {
	o := Transient(NewError(ReasonArrowNotFound, "acquire", "no arrow"))
	assert.Equal(t, OutcomeTransientFailure, o.Kind)
	assert.Equal(t, ReasonArrowNotFound, o.Reason)
	assert.Equal(t, "transient_failure", o.Kind.String())

	e := Exhausted(NewError(ReasonOutOfTroops, "deploy", ""))
	assert.Equal(t, OutcomeExhausted, e.Kind)
	assert.Equal(t, ReasonOutOfTroops, e.Reason)
}
