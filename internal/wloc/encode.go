package wloc

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Request message field numbers.
const (
	requestWifisField  protowire.Number = 2
	requestNoiseField  protowire.Number = 3
	requestSignalField protowire.Number = 4
	requestSourceField protowire.Number = 5

	wifiEntryMacField protowire.Number = 1
)

// Default query parameters used by single-BSSID lookups.
const (
	DefaultSignal int32 = 100
	DefaultNoise  int32 = 0
)

// QueryOptions holds the optional aggregate request parameters.
type QueryOptions struct {
	// Signal is omitted from the request when nil.
	Signal *int32

	// Noise is omitted from the request when nil.
	Noise *int32

	// Source is omitted from the request when empty.
	Source string
}

// DefaultQueryOptions returns signal=100 and noise=0.
func DefaultQueryOptions() QueryOptions {
	signal, noise := DefaultSignal, DefaultNoise
	return QueryOptions{
		Signal: &signal,
		Noise:  &noise,
	}
}

// NewRequest parses bssids into a Request. It fails on the first BSSID that
// does not parse and never returns a partial request.
func NewRequest(bssids []string, opts QueryOptions) (*Request, error) {
	if len(bssids) == 0 {
		return nil, &InvalidInputError{}
	}

	req := &Request{
		Wifis:  make([]WifiRequestEntry, 0, len(bssids)),
		Signal: opts.Signal,
		Noise:  opts.Noise,
	}
	if opts.Source != "" {
		source := opts.Source
		req.Source = &source
	}

	for _, raw := range bssids {
		mac, err := ParseMAC(raw)
		if err != nil {
			return nil, &InvalidInputError{BSSID: raw, Err: err}
		}
		req.Wifis = append(req.Wifis, WifiRequestEntry{BSSID: mac})
	}

	return req, nil
}

// Marshal serializes the request body in protobuf wire format.
func (r *Request) Marshal() []byte {
	var b []byte

	for _, wifi := range r.Wifis {
		var entry []byte
		entry = protowire.AppendTag(entry, wifiEntryMacField, protowire.BytesType)
		entry = protowire.AppendString(entry, wifi.BSSID.String())

		b = protowire.AppendTag(b, requestWifisField, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	if r.Noise != nil {
		b = protowire.AppendTag(b, requestNoiseField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(*r.Noise)))
	}
	if r.Signal != nil {
		b = protowire.AppendTag(b, requestSignalField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(*r.Signal)))
	}
	if r.Source != nil {
		b = protowire.AppendTag(b, requestSourceField, protowire.BytesType)
		b = protowire.AppendString(b, *r.Source)
	}

	return b
}

// EncodeRequest builds the complete request frame:
// header ++ u16(len(body)) ++ body.
func EncodeRequest(id ClientIdentity, req *Request) ([]byte, error) {
	body := req.Marshal()
	if len(body) > math.MaxUint16 {
		return nil, &EncodeError{Field: "request body", Length: len(body)}
	}

	frame, err := appendHeader(make([]byte, 0, id.HeaderLen()+2+len(body)), id)
	if err != nil {
		return nil, err
	}
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(body)))
	return append(frame, body...), nil
}

// EncodeLookup parses bssids and returns the request frame for them.
func EncodeLookup(id ClientIdentity, bssids []string, opts QueryOptions) ([]byte, error) {
	req, err := NewRequest(bssids, opts)
	if err != nil {
		return nil, err
	}
	return EncodeRequest(id, req)
}
