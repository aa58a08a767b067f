package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateAlertSequence(t *testing.T) {
	steps := []struct {
		count    int
		wantShow bool
		wantAck  int
	}{
		{count: 0, wantShow: false, wantAck: 0},
		{count: 2, wantShow: true, wantAck: 2},
		{count: 2, wantShow: false, wantAck: 2},
		{count: 1, wantShow: false, wantAck: 1},
		{count: 1, wantShow: false, wantAck: 1},
		{count: 3, wantShow: true, wantAck: 3},
		{count: 0, wantShow: false, wantAck: 0},
		{count: 1, wantShow: true, wantAck: 1},
	}
	state := AlertState{}
	for i, step := range steps {
		show, next := EvaluateAlert(state, step.count)
		assert.Equal(t, step.wantShow, show, "step %d show", i)
		assert.Equal(t, step.wantAck, next.Acknowledged, "step %d ack", i)
		state = next
	}
}

func TestEvaluateAlertTracksCountOnly(t *testing.T) {
	// one supplier approved and another registered between two visits
	show, next := EvaluateAlert(AlertState{Acknowledged: 2}, 2)
	assert.False(t, show)
	assert.Equal(t, 2, next.Acknowledged)
}

func TestAlertStateRoundTripThroughSession(t *testing.T) {
	sess := &Session{ID: "s1", values: map[string]string{}}
	require.Equal(t, AlertState{}, LoadAlertState(sess, "pending_suppliers"))

	StoreAlertState(sess, "pending_suppliers", AlertState{Acknowledged: 4})
	require.Equal(t, AlertState{Acknowledged: 4}, LoadAlertState(sess, "pending_suppliers"))
	require.Equal(t, AlertState{}, LoadAlertState(sess, "other"))

	StoreAlertState(sess, "pending_suppliers", AlertState{})
	require.Empty(t, sess.Get("alert:pending_suppliers"))
}

func TestAlertStateIgnoresGarbage(t *testing.T) {
	sess := &Session{ID: "s1", values: map[string]string{"alert:x": "nope"}}
	require.Equal(t, AlertState{}, LoadAlertState(sess, "x"))
	require.Equal(t, AlertState{}, LoadAlertState(nil, "x"))
}
