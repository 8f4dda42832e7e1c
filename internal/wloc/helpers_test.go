package wloc_test

import (
	"context"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wlocate/wlocate/internal/wloc"
)

// wireLocation describes a location message for building fake responses.
type wireLocation struct {
	lat, lon, accuracy, altitude, altitudeAccuracy int64
}

// wireObservation describes one observation; a nil loc omits the field.
type wireObservation struct {
	bssid string
	loc   *wireLocation
}

func appendVarintField(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func marshalLocation(l *wireLocation) []byte {
	var b []byte
	b = appendVarintField(b, 1, l.lat)
	b = appendVarintField(b, 2, l.lon)
	b = appendVarintField(b, 3, l.accuracy)
	b = appendVarintField(b, 5, l.altitude)
	b = appendVarintField(b, 6, l.altitudeAccuracy)
	return b
}

func marshalObservation(o wireObservation) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, o.bssid)
	if o.loc != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLocation(o.loc))
	}
	return b
}

// responseBody builds a response message without the preamble.
func responseBody(obs ...wireObservation) []byte {
	var b []byte
	for _, o := range obs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalObservation(o))
	}
	return b
}

// responseFrame prepends a 10-byte preamble of non-zero junk to the body.
func responseFrame(obs ...wireObservation) []byte {
	frame := []byte{0x00, 0x01, 0x00, 0x00, 0xff, 0xee, 0x00, 0x00, 0x12, 0x34}
	return append(frame, responseBody(obs...)...)
}

// fakeTransport records frames and replays a canned body or error.
type fakeTransport struct {
	mu     sync.Mutex
	body   []byte
	err    error
	frames [][]byte
}

func (f *fakeTransport) Query(_ context.Context, frame []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

var _ wloc.Transport = (*fakeTransport)(nil)
