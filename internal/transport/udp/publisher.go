// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"
)

// headerSize is sequence (4) + timestamp (8) + peak (4) + count (2).
const headerSize = 18

// ErrShortPacket is returned by DecodePacket for truncated packets.
var ErrShortPacket = errors.New("udp packet too short")

// UDPPublisher periodically copies the latest magnitude spectrum from a
// SpectrumProvider, packs it into the binary packet format below and sends it
// with a UDPSender. It runs in a separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender                // The underlying UDP sender instance.
	provider analysis.SpectrumProvider // Source of magnitudes and peak frequency.
	interval time.Duration             // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Pre-allocated buffers, reused on every tick.
	magBuffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 100ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider analysis.SpectrumProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}

	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	bins := provider.BinCount()
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Bins: %d)", interval, bins)

	p := &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		magBuffer:    make([]float32, bins),
		packetBuffer: new(bytes.Buffer),
	}
	p.packetBuffer.Grow(headerSize + 4*bins)
	return p, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				if err := p.buildAndSendPacket(); err != nil {
					applog.Warnf("UDPPublisher: %v", err)
				}
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Stopped after %d packets.", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Peak Frequency    | float32        | 4            | Dominant frequency (Hz) |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Bins 0..N-1, DC first   |
+-----------------------------------------------------------------------------+
*/

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	PeakHz     float32
	Magnitudes []float32
}

// buildAndSendPacket copies the latest magnitudes, packs them and sends one
// packet.
func (p *UDPPublisher) buildAndSendPacket() error {
	if err := p.provider.MagnitudesInto(p.magBuffer); err != nil {
		return fmt.Errorf("getting magnitudes: %w", err)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	writePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(),
		float32(p.provider.PeakFrequency()), p.magBuffer)

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return fmt.Errorf("sending packet %d: %w", p.sequenceNum, err)
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	return nil
}

// writePacket appends one packet to buf. Writes to a bytes.Buffer cannot fail.
func writePacket(buf *bytes.Buffer, seq uint32, timestamp int64, peak float32, mags []float32) {
	_ = binary.Write(buf, binary.BigEndian, seq)
	_ = binary.Write(buf, binary.BigEndian, timestamp)
	_ = binary.Write(buf, binary.BigEndian, peak)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(mags)))
	_ = binary.Write(buf, binary.BigEndian, mags)
}

// DecodePacket parses a packet produced by UDPPublisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}

	r := bytes.NewReader(data)
	var (
		pkt   Packet
		count uint16
	)
	_ = binary.Read(r, binary.BigEndian, &pkt.Sequence)
	_ = binary.Read(r, binary.BigEndian, &pkt.Timestamp)
	_ = binary.Read(r, binary.BigEndian, &pkt.PeakHz)
	_ = binary.Read(r, binary.BigEndian, &count)

	if want := headerSize + 4*int(count); len(data) < want {
		return Packet{}, fmt.Errorf("%w: %d bytes, header announces %d", ErrShortPacket, len(data), want)
	}
	pkt.Magnitudes = make([]float32, count)
	if err := binary.Read(r, binary.BigEndian, pkt.Magnitudes); err != nil {
		return Packet{}, fmt.Errorf("decoding magnitudes: %w", err)
	}
	return pkt, nil
}

// Close implements the io.Closer interface. It stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
