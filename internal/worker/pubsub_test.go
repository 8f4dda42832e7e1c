package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/wlocate/wlocate/internal/wloc"
	"github.com/wlocate/wlocate/internal/worker"
)

func TestProcessor_Process(t *testing.T) {
	known := "aa:bb:cc:00:00:01"

	tests := []struct {
		name      string
		payload   string
		failOn    map[string]error
		want      worker.Decision
		wantCalls int
	}{
		{
			name:      "locate succeeds",
			payload:   `{"job_type":"locate","bssids":["` + known + `"],"source":"survey"}`,
			want:      worker.Ack,
			wantCalls: 1,
		},
		{
			name:    "malformed json",
			payload: `{"job_type":`,
			want:    worker.Nack,
		},
		{
			name:    "unknown job type",
			payload: `{"job_type":"provider_refresh"}`,
			want:    worker.Ack,
		},
		{
			name:    "no bssids",
			payload: `{"job_type":"locate","bssids":[]}`,
			want:    worker.Ack,
		},
		{
			name:      "transport failure is retried",
			payload:   `{"job_type":"locate","bssids":["` + known + `"]}`,
			failOn:    map[string]error{known: &wloc.TransportError{StatusCode: 503}},
			want:      worker.Nack,
			wantCalls: 1,
		},
		{
			name:      "invalid bssid is dropped",
			payload:   `{"job_type":"locate","bssids":["not-a-mac"]}`,
			want:      worker.Ack,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator := &fakeLocator{failOn: tt.failOn}
			recorder := &fakeRecorder{}
			p := worker.NewProcessor(newJob(locator, recorder, 10), zerolog.Nop())

			got := p.Process(context.Background(), []byte(tt.payload))

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, locator.callCount())
		})
	}
}

func TestProcessor_RecordsUnderMessageSource(t *testing.T) {
	recorder := &fakeRecorder{}
	p := worker.NewProcessor(newJob(&fakeLocator{}, recorder, 10), zerolog.Nop())

	p.Process(context.Background(), []byte(`{"job_type":"locate","bssids":["aa:bb:cc:00:00:01"],"source":"wardrive"}`))

	assert.Equal(t, []string{"wardrive"}, recorder.sources)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}
