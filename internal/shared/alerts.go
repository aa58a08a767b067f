package shared

import "strconv"

// AlertState remembers how many items a dismissible alert last announced.
type AlertState struct {
	Acknowledged int
}

// EvaluateAlert decides whether an alert about count pending items is shown,
// returning the state to keep for the next evaluation. The alert fires once
// per increase; a falling or zero count lowers the baseline silently.
//
// Only the count is tracked, not which items make it up. If one item is
// resolved and another arrives between two evaluations the count is unchanged
// and the newcomer is not announced.
func EvaluateAlert(prev AlertState, count int) (bool, AlertState) {
	if count <= 0 {
		return false, AlertState{}
	}
	if count > prev.Acknowledged {
		return true, AlertState{Acknowledged: count}
	}
	return false, AlertState{Acknowledged: count}
}

const alertKeyPrefix = "alert:"

// LoadAlertState reads the state stored under kind.
func LoadAlertState(sess *Session, kind string) AlertState {
	if sess == nil {
		return AlertState{}
	}
	n, err := strconv.Atoi(sess.Get(alertKeyPrefix + kind))
	if err != nil || n < 0 {
		return AlertState{}
	}
	return AlertState{Acknowledged: n}
}

// StoreAlertState persists state under kind. A zero state is removed.
func StoreAlertState(sess *Session, kind string, state AlertState) {
	if sess == nil {
		return
	}
	if state.Acknowledged <= 0 {
		sess.Delete(alertKeyPrefix + kind)
		return
	}
	if LoadAlertState(sess, kind) == state {
		return
	}
	sess.Set(alertKeyPrefix+kind, strconv.Itoa(state.Acknowledged))
}
