// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpectrum is a SpectrumProvider with fixed values.
type fakeSpectrum struct {
	mu   sync.Mutex
	mags []float32
	peak float64
	err  error
}

func (f *fakeSpectrum) MagnitudesInto(dest []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	copy(dest, f.mags)
	return nil
}

func (f *fakeSpectrum) PeakFrequency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeSpectrum) BinFrequency(binIndex int) float64 { return float64(binIndex) }
func (f *fakeSpectrum) BinCount() int                     { return len(f.mags) }
func (f *fakeSpectrum) SampleRate() float64               { return 1000 }

func newFakeSpectrum(bins int) *fakeSpectrum {
	f := &fakeSpectrum{mags: make([]float32, bins), peak: 125}
	for i := range f.mags {
		f.mags[i] = float32(i) * 0.5
	}
	return f
}

// listen opens a loopback UDP socket and a sender targeting it.
func listen(t *testing.T) (*net.UDPConn, *UDPSender) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })
	return conn, sender
}

func readPacket(t *testing.T, conn *net.UDPConn) Packet {
	t.Helper()
	buf := make([]byte, 65536)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	pkt, err := DecodePacket(buf[:n])
	require.NoError(t, err)
	return pkt
}

func TestNewUDPPublisherValidation(t *testing.T) {
	_, sender := listen(t)

	_, err := NewUDPPublisher(time.Second, nil, newFakeSpectrum(4))
	assert.Error(t, err)

	_, err = NewUDPPublisher(time.Second, sender, nil)
	assert.Error(t, err)

	p, err := NewUDPPublisher(0, sender, newFakeSpectrum(4))
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, p.interval)
}

func TestBuildAndSendPacket(t *testing.T) {
	conn, sender := listen(t)
	spectrum := newFakeSpectrum(512)

	p, err := NewUDPPublisher(time.Second, sender, spectrum)
	require.NoError(t, err)

	before := time.Now().UnixNano()
	require.NoError(t, p.buildAndSendPacket())

	pkt := readPacket(t, conn)
	assert.Equal(t, uint32(1), pkt.Sequence)
	assert.GreaterOrEqual(t, pkt.Timestamp, before)
	assert.Equal(t, float32(125), pkt.PeakHz)
	assert.Equal(t, spectrum.mags, pkt.Magnitudes)

	require.NoError(t, p.buildAndSendPacket())
	assert.Equal(t, uint32(2), readPacket(t, conn).Sequence)
}

func TestBuildAndSendPacketProviderError(t *testing.T) {
	_, sender := listen(t)
	spectrum := newFakeSpectrum(8)
	spectrum.err = errors.New("no spectrum yet")

	p, err := NewUDPPublisher(time.Second, sender, spectrum)
	require.NoError(t, err)

	err = p.buildAndSendPacket()
	assert.ErrorContains(t, err, "no spectrum yet")
	assert.Zero(t, p.sequenceNum, "a skipped packet does not consume a sequence number")
}

func TestPublisherStartStop(t *testing.T) {
	conn, sender := listen(t)

	p, err := NewUDPPublisher(5*time.Millisecond, sender, newFakeSpectrum(16))
	require.NoError(t, err)

	p.Start()
	p.Start() // No-op while running.

	first := readPacket(t, conn)
	second := readPacket(t, conn)
	assert.Greater(t, second.Sequence, first.Sequence)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	require.NoError(t, p.Close())
}

func TestSenderClosed(t *testing.T) {
	_, sender := listen(t)
	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())

	err := sender.Send([]byte{1})
	assert.ErrorIs(t, err, ErrSenderClosed)
}

func TestNewUDPSenderBadAddress(t *testing.T) {
	_, err := NewUDPSender("not an address")
	assert.Error(t, err)
}

func TestDecodePacketErrors(t *testing.T) {
	_, err := DecodePacket(make([]byte, headerSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)

	// Header announcing more magnitudes than the packet carries.
	header := make([]byte, headerSize)
	header[headerSize-1] = 3
	_, err = DecodePacket(header)
	assert.ErrorIs(t, err, ErrShortPacket)
}
