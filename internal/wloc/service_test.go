package wloc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlocate/wlocate/internal/wloc"
)

type recordedCall struct {
	provider  string
	operation string
	err       error
}

type fakeMetrics struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *fakeMetrics) RecordRequest(provider, operation string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{provider, operation, err})
}

func newTestService(transport wloc.Transport, metrics wloc.MetricsRecorder) *wloc.Service {
	return wloc.NewService(wloc.ServiceConfig{
		Transport: transport,
		Metrics:   metrics,
		Logger:    zerolog.Nop(),
	})
}

func TestService_BasicLocation(t *testing.T) {
	transport := &fakeTransport{body: responseFrame(wireObservation{
		bssid: "0:1c:10:a:b:c",
		loc:   &wireLocation{lat: 5_236_760_000, lon: 490_410_000, accuracy: 30},
	})}
	svc := newTestService(transport, nil)

	lat, lon, err := svc.BasicLocation(context.Background(), "00:1C:10:0A:0B:0C")
	require.NoError(t, err)
	assert.InDelta(t, 52.3676, lat, 1e-9)
	assert.InDelta(t, 4.9041, lon, 1e-9)

	require.Equal(t, 1, transport.calls())
	fields := decodeRequestBody(t, transport.frames[0][wloc.DefaultClientIdentity().HeaderLen()+2:])
	assert.Equal(t, []string{"00:1c:10:0a:0b:0c"}, fields.bssids)
	require.NotNil(t, fields.signal)
	assert.Equal(t, int64(100), *fields.signal)
}

func TestService_InvalidInputSkipsTransport(t *testing.T) {
	transport := &fakeTransport{}
	svc := newTestService(transport, nil)

	_, _, err := svc.BasicLocation(context.Background(), "zz:zz:zz:zz:zz:zz")
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrInvalidInput)

	_, err = svc.Locate(context.Background(), nil, wloc.DefaultQueryOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrInvalidInput)

	assert.Equal(t, 0, transport.calls())
}

func TestService_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"no observations", responseFrame()},
		{"no location", responseFrame(wireObservation{bssid: "01:02:03:04:05:06"})},
		{"unknown sentinel", responseFrame(wireObservation{
			bssid: "01:02:03:04:05:06",
			loc:   &wireLocation{lat: wloc.UnknownCoordinate, lon: wloc.UnknownCoordinate},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeTransport{body: tt.body}, nil)

			_, err := svc.Resolve(context.Background(), "01:02:03:04:05:06")
			require.Error(t, err)
			assert.ErrorIs(t, err, wloc.ErrBssidNotFound)

			var nf *wloc.NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, "01:02:03:04:05:06", nf.BSSID.String())
		})
	}
}

func TestService_ResolveMatchesByValue(t *testing.T) {
	transport := &fakeTransport{body: responseFrame(
		wireObservation{bssid: "aa:aa:aa:aa:aa:aa", loc: &wireLocation{lat: 100_000_000, lon: 100_000_000}},
		wireObservation{bssid: "01:02:03:04:05:06", loc: &wireLocation{lat: 200_000_000, lon: 300_000_000}},
	)}
	svc := newTestService(transport, nil)

	obs, err := svc.Resolve(context.Background(), "01:02:03:04:05:06")
	require.NoError(t, err)
	assert.Equal(t, "01:02:03:04:05:06", obs.BSSID.String())
	assert.Equal(t, 2.0, obs.Location.Latitude)
	assert.Equal(t, 3.0, obs.Location.Longitude)
}

func TestService_ResolveFallsBackToFirst(t *testing.T) {
	transport := &fakeTransport{body: responseFrame(
		wireObservation{bssid: "aa:aa:aa:aa:aa:aa", loc: &wireLocation{lat: 100_000_000, lon: 100_000_000}},
	)}
	svc := newTestService(transport, nil)

	obs, err := svc.Resolve(context.Background(), "01:02:03:04:05:06")
	require.NoError(t, err)
	assert.Equal(t, "aa:aa:aa:aa:aa:aa", obs.BSSID.String())
}

func TestService_TransportErrorPassesThrough(t *testing.T) {
	transportErr := &wloc.TransportError{StatusCode: 403}
	metrics := &fakeMetrics{}
	svc := newTestService(&fakeTransport{err: transportErr}, metrics)

	_, err := svc.Resolve(context.Background(), "01:02:03:04:05:06")
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrTransport)
	assert.Same(t, transportErr, err)

	require.Len(t, metrics.calls, 1)
	assert.Equal(t, "fake", metrics.calls[0].provider)
	assert.Equal(t, "query", metrics.calls[0].operation)
	assert.Same(t, transportErr, metrics.calls[0].err)
}

func TestService_DecodeError(t *testing.T) {
	svc := newTestService(&fakeTransport{body: []byte{0x00, 0x01, 0x02}}, nil)

	_, err := svc.Resolve(context.Background(), "01:02:03:04:05:06")
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrDecode)
}

func TestService_Locate(t *testing.T) {
	transport := &fakeTransport{body: responseFrame(
		wireObservation{bssid: "01:02:03:04:05:06", loc: &wireLocation{lat: 100_000_000, lon: 100_000_000}},
		wireObservation{bssid: "0a:0b:0c:0d:0e:0f"},
		wireObservation{bssid: "11:22:33:44:55:66", loc: &wireLocation{lat: 200_000_000, lon: 200_000_000}},
	)}
	metrics := &fakeMetrics{}
	svc := newTestService(transport, metrics)

	resp, err := svc.Locate(context.Background(), []string{"01:02:03:04:05:06", "0a:0b:0c:0d:0e:0f"}, wloc.QueryOptions{Source: "test"})
	require.NoError(t, err)
	require.Len(t, resp, 3)
	assert.Len(t, resp.Known(), 2)

	fields := decodeRequestBody(t, transport.frames[0][wloc.DefaultClientIdentity().HeaderLen()+2:])
	assert.Len(t, fields.bssids, 2)
	require.NotNil(t, fields.source)
	assert.Equal(t, "test", *fields.source)

	require.Len(t, metrics.calls, 1)
	assert.NoError(t, metrics.calls[0].err)
}

func TestService_CustomIdentity(t *testing.T) {
	transport := &fakeTransport{body: responseFrame()}
	id := wloc.ClientIdentity{Locale: "nl_NL", Identifier: "com.example.wloc", Version: "1.0", UserAgent: "test"}
	svc := wloc.NewService(wloc.ServiceConfig{Transport: transport, Identity: id, Logger: zerolog.Nop()})

	assert.Equal(t, id, svc.Identity())

	_, err := svc.Locate(context.Background(), []string{"01:02:03:04:05:06"}, wloc.DefaultQueryOptions())
	require.NoError(t, err)

	frame := transport.frames[0]
	assert.Equal(t, byte(5), frame[3])
	assert.Equal(t, "nl_NL", string(frame[4:9]))
}

func TestService_DefaultIdentity(t *testing.T) {
	svc := newTestService(&fakeTransport{}, nil)
	assert.Equal(t, wloc.DefaultClientIdentity(), svc.Identity())
}
