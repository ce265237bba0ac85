// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"pitchscope/internal/analyzer"
	applog "pitchscope/internal/log"
)

// LoggingTransport implements the Transport interface by logging frames.
// Voiced frames are logged at info level, everything else at debug level.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	lt.sent.Add(1)

	switch v := data.(type) {
	case analyzer.Frame:
		logResult(v.Result, v.Held)
	case analyzer.Result:
		logResult(v, false)
	default:
		applog.Debugf("LoggingTransport: Received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

func logResult(r analyzer.Result, held bool) {
	state := ""
	if held {
		state = " [held]"
	}
	if r.Silent || r.Note == nil {
		applog.Debugf("LoggingTransport: Cycle %d silent (peak %.2f Hz, magnitude %.1f)%s",
			r.Cycle, r.PeakHz, r.PeakMagnitude, state)
		return
	}
	applog.Infof("LoggingTransport: Cycle %d %.2f Hz %s%s", r.Cycle, r.PeakHz, r.Note, state)
}

// Sent returns the number of frames received.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LoggingTransport: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
