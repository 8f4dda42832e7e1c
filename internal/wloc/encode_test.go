package wloc_test

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wlocate/wlocate/internal/wloc"
)

func TestEncodeHeader_Layout(t *testing.T) {
	header, err := wloc.EncodeHeader(wloc.DefaultClientIdentity())
	require.NoError(t, err)

	want := []byte{0x00, 0x01}
	want = append(want, 0x00, 0x05)
	want = append(want, "en_US"...)
	want = append(want, 0x00, 0x13)
	want = append(want, "com.apple.locationd"...)
	want = append(want, 0x00, 0x0a)
	want = append(want, "17.5.21F79"...)
	want = append(want, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00)

	assert.Equal(t, want, header)
	assert.Equal(t, wloc.DefaultClientIdentity().HeaderLen(), len(header))
}

func TestEncodeLookup_Frame(t *testing.T) {
	frame, err := wloc.EncodeLookup(wloc.DefaultClientIdentity(), []string{"00:1c:10:0a:0b:0c"}, wloc.DefaultQueryOptions())
	require.NoError(t, err)

	assert.Equal(t, []byte{0x00, 0x01}, frame[0:2])
	assert.Equal(t, byte(5), frame[3])

	headerLen := wloc.DefaultClientIdentity().HeaderLen()
	require.Greater(t, len(frame), headerLen+2)

	bodyLen := int(binary.BigEndian.Uint16(frame[headerLen : headerLen+2]))
	body := frame[headerLen+2:]
	assert.Equal(t, len(body), bodyLen)

	fields := decodeRequestBody(t, body)
	assert.Equal(t, []string{"00:1c:10:0a:0b:0c"}, fields.bssids)
	require.NotNil(t, fields.noise)
	require.NotNil(t, fields.signal)
	assert.Equal(t, int64(0), *fields.noise)
	assert.Equal(t, int64(100), *fields.signal)
	assert.Nil(t, fields.source)
}

func TestEncodeLookup_MultipleAndSource(t *testing.T) {
	bssids := []string{"34:db:fd:1a:2b:3c", "0:1c:10:a:b:c", "AA-BB-CC-DD-EE-FF"}
	opts := wloc.QueryOptions{Source: "survey"}

	frame, err := wloc.EncodeLookup(wloc.DefaultClientIdentity(), bssids, opts)
	require.NoError(t, err)

	body := frame[wloc.DefaultClientIdentity().HeaderLen()+2:]
	fields := decodeRequestBody(t, body)

	assert.Equal(t, []string{"34:db:fd:1a:2b:3c", "00:1c:10:0a:0b:0c", "aa:bb:cc:dd:ee:ff"}, fields.bssids)
	assert.Nil(t, fields.noise)
	assert.Nil(t, fields.signal)
	require.NotNil(t, fields.source)
	assert.Equal(t, "survey", *fields.source)
}

func TestEncodeRequest_NegativeSignal(t *testing.T) {
	signal := int32(-70)
	req, err := wloc.NewRequest([]string{"01:02:03:04:05:06"}, wloc.QueryOptions{Signal: &signal})
	require.NoError(t, err)

	fields := decodeRequestBody(t, req.Marshal())
	require.NotNil(t, fields.signal)
	assert.Equal(t, int64(-70), *fields.signal)
}

func TestNewRequest_InvalidInput(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		_, err := wloc.NewRequest(nil, wloc.DefaultQueryOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, wloc.ErrInvalidInput)
	})

	t.Run("first bad bssid is reported", func(t *testing.T) {
		_, err := wloc.NewRequest([]string{"01:02:03:04:05:06", "nope", "also-bad"}, wloc.DefaultQueryOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, wloc.ErrInvalidInput)

		var ie *wloc.InvalidInputError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "nope", ie.BSSID)
	})
}

func TestEncodeRequest_OversizedIdentity(t *testing.T) {
	id := wloc.DefaultClientIdentity()
	id.Identifier = strings.Repeat("x", 70000)

	_, err := wloc.EncodeLookup(id, []string{"01:02:03:04:05:06"}, wloc.DefaultQueryOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrEncode)

	var ee *wloc.EncodeError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "identifier", ee.Field)
	assert.Equal(t, 70000, ee.Length)
}

func TestEncodeRequest_OversizedBody(t *testing.T) {
	source := strings.Repeat("s", 70000)
	req, err := wloc.NewRequest([]string{"01:02:03:04:05:06"}, wloc.QueryOptions{Source: source})
	require.NoError(t, err)

	_, err = wloc.EncodeRequest(wloc.DefaultClientIdentity(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, wloc.ErrEncode)
}

type requestFields struct {
	bssids []string
	noise  *int64
	signal *int64
	source *string
}

// decodeRequestBody parses a request body back into its fields.
func decodeRequestBody(t *testing.T, b []byte) requestFields {
	t.Helper()

	var fields requestFields
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		switch {
		case num == 2 && typ == protowire.BytesType:
			entry, n := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]

			enum, etyp, en := protowire.ConsumeTag(entry)
			require.GreaterOrEqual(t, en, 0)
			require.Equal(t, protowire.Number(1), enum)
			require.Equal(t, protowire.BytesType, etyp)
			mac, mn := protowire.ConsumeString(entry[en:])
			require.GreaterOrEqual(t, mn, 0)
			fields.bssids = append(fields.bssids, mac)

		case (num == 3 || num == 4) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]
			val := int64(v)
			if num == 3 {
				fields.noise = &val
			} else {
				fields.signal = &val
			}

		case num == 5 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			require.GreaterOrEqual(t, n, 0)
			b = b[n:]
			fields.source = &s

		default:
			t.Fatalf("unexpected field %d (type %d)", num, typ)
		}
	}
	return fields
}
