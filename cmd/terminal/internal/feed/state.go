package feed

import "github.com/shubham-shewale/marketfeed/pkg/models"

// State is the lifecycle state of the feed connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed // attempts exhausted; terminal
	StateClosing
	StateClosed // stopped by the owner; terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// applyHealth writes the connection health that belongs to s.
//
//	Connecting                         connected unchanged, degraded
//	Open                               true, good
//	Reconnecting/Closing/Closed/Failed false, disconnected
//
// Open and the disconnected states set both fields at once, so
// connected=false is never observed together with quality good.
func applyHealth(sink Sink, s State) {
	switch s {
	case StateConnecting:
		sink.SetConnectionQuality(models.QualityDegraded)
	case StateOpen:
		sink.SetConnectionHealth(models.ConnectionHealth{Connected: true, Quality: models.QualityGood})
	case StateReconnecting, StateClosing, StateClosed, StateFailed:
		sink.SetConnectionHealth(models.ConnectionHealth{Connected: false, Quality: models.QualityDisconnected})
	}
}
