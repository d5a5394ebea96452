package servo

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a servo session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// ConnectCount indicates the number of successful connects.
	ConnectCount atomic.Uint64
	// ConnectErrCount indicates the number of failed connects.
	ConnectErrCount atomic.Uint64

	// MoveRequestCount indicates the number of MoveTo calls accepted while connected.
	MoveRequestCount atomic.Uint64
	// CoalescedCount indicates the number of targets superseded before being written.
	CoalescedCount atomic.Uint64
	// WriteCount indicates the number of command frames written.
	WriteCount atomic.Uint64
	// WriteErrCount indicates the number of failed writes.
	WriteErrCount atomic.Uint64

	// ResetCount indicates the number of Reset calls.
	ResetCount atomic.Uint64
}

func (m *SessionMetrics) incConnectCount()     { m.ConnectCount.Add(1) }
func (m *SessionMetrics) incConnectErrCount()  { m.ConnectErrCount.Add(1) }
func (m *SessionMetrics) incMoveRequestCount() { m.MoveRequestCount.Add(1) }
func (m *SessionMetrics) incCoalescedCount()   { m.CoalescedCount.Add(1) }
func (m *SessionMetrics) incWriteCount()       { m.WriteCount.Add(1) }
func (m *SessionMetrics) incWriteErrCount()    { m.WriteErrCount.Add(1) }
func (m *SessionMetrics) incResetCount()       { m.ResetCount.Add(1) }
