package apple_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wlocate/wlocate/internal/provider/resilience"
	"github.com/wlocate/wlocate/internal/wloc"
	"github.com/wlocate/wlocate/internal/wloc/apple"
)

// responseBody builds a WLOC response with one located observation.
func responseBody(bssid string, lat, lon int64) []byte {
	var loc []byte
	loc = protowire.AppendTag(loc, 1, protowire.VarintType)
	loc = protowire.AppendVarint(loc, uint64(lat))
	loc = protowire.AppendTag(loc, 2, protowire.VarintType)
	loc = protowire.AppendVarint(loc, uint64(lon))

	var obs []byte
	obs = protowire.AppendTag(obs, 1, protowire.BytesType)
	obs = protowire.AppendString(obs, bssid)
	obs = protowire.AppendTag(obs, 2, protowire.BytesType)
	obs = protowire.AppendBytes(obs, loc)

	body := make([]byte, wloc.ResponsePreambleLen)
	body = protowire.AppendTag(body, 2, protowire.BytesType)
	return protowire.AppendBytes(body, obs)
}

func TestClient_QueryPostsFrame(t *testing.T) {
	frame, err := wloc.EncodeLookup(wloc.DefaultClientIdentity(), []string{"00:1c:10:0a:0b:0c"}, wloc.DefaultQueryOptions())
	require.NoError(t, err)

	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, wloc.DefaultUserAgent, r.Header.Get("User-Agent"))
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		_, _ = w.Write(responseBody("0:1c:10:a:b:c", 5_236_760_000, 490_410_000))
	}))
	defer server.Close()

	client := apple.NewClient(apple.ClientConfig{Endpoint: server.URL})

	body, err := client.Query(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, frame, <-bodies)

	resp, err := wloc.DecodeResponse(body)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, "00:1c:10:0a:0b:0c", resp[0].BSSID.String())
	require.NotNil(t, resp[0].Location)
	assert.InDelta(t, 52.3676, resp[0].Location.Latitude, 1e-9)
	assert.InDelta(t, 4.9041, resp[0].Location.Longitude, 1e-9)
}

func TestClient_CustomUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wloc-test/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := apple.NewClient(apple.ClientConfig{Endpoint: server.URL, UserAgent: "wloc-test/1.0"})

	body, err := client.Query(context.Background(), []byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"forbidden", http.StatusForbidden},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := apple.NewClient(apple.ClientConfig{Endpoint: server.URL})

			_, err := client.Query(context.Background(), []byte{0x00, 0x01})
			require.Error(t, err)
			assert.ErrorIs(t, err, wloc.ErrTransport)

			var te *wloc.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, int32(1), attempts.Load(), "lookups are not retried by default")
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	endpoint := server.URL
	server.Close()

	client := apple.NewClient(apple.ClientConfig{Endpoint: endpoint, Timeout: time.Second})

	_, err := client.Query(context.Background(), []byte{0x00, 0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrTransport)

	var te *wloc.TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
}

func TestClient_RecordsToRegistry(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := apple.NewClient(apple.ClientConfig{Endpoint: server.URL, Registry: registry})

	_, err := client.Query(context.Background(), nil)
	require.NoError(t, err)

	health := registry.GetHealth(apple.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	status.Store(http.StatusForbidden)
	_, err = client.Query(context.Background(), nil)
	require.Error(t, err)

	health = registry.GetHealth(apple.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "403")
}

func TestClient_Name(t *testing.T) {
	client := apple.NewClient(apple.ClientConfig{})
	assert.Equal(t, apple.ProviderName, client.Name())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WLOC_ENDPOINT", "http://localhost:9999/wloc")
	t.Setenv("WLOC_TIMEOUT", "3s")
	t.Setenv("WLOC_MAX_RETRIES", "2")
	t.Setenv("WLOC_LOCALE", "nl_NL")

	cfg := apple.ConfigFromEnv()
	assert.Equal(t, "http://localhost:9999/wloc", cfg.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(2), cfg.MaxRetries)
	assert.Equal(t, wloc.DefaultUserAgent, cfg.UserAgent)

	id := apple.IdentityFromEnv()
	assert.Equal(t, "nl_NL", id.Locale)
	assert.Equal(t, wloc.DefaultIdentifier, id.Identifier)
	assert.Equal(t, wloc.DefaultVersion, id.Version)
}
