// Package wloc implements the WLOC wire protocol used to resolve Wi-Fi access
// point hardware addresses (BSSIDs) to coordinates.
package wloc

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MacAddress is a 6-octet hardware address.
type MacAddress [6]byte

// ParseMAC parses a hardware address of exactly six octets separated by ':'
// or '-'. Octets may be one or two hex digits, since the service itself
// renders them without zero padding (e.g. "0:1c:10:a:b:c").
func ParseMAC(s string) (MacAddress, error) {
	var mac MacAddress

	s = strings.TrimSpace(s)
	sep := ":"
	if !strings.Contains(s, sep) {
		sep = "-"
	}

	parts := strings.Split(s, sep)
	if len(parts) != len(mac) {
		return MacAddress{}, fmt.Errorf("invalid MAC address %q: want 6 octets, got %d", s, len(parts))
	}

	for i, part := range parts {
		if len(part) == 0 || len(part) > 2 {
			return MacAddress{}, fmt.Errorf("invalid MAC address %q: bad octet %q", s, part)
		}
		if len(part) == 1 {
			part = "0" + part
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return MacAddress{}, fmt.Errorf("invalid MAC address %q: bad octet %q", s, parts[i])
		}
		mac[i] = b[0]
	}

	return mac, nil
}

// String returns the canonical lowercase, colon separated form.
func (m MacAddress) String() string {
	var sb strings.Builder
	sb.Grow(17)
	for i, b := range m {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (m MacAddress) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MacAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// WifiRequestEntry is one access point in an uplink query.
type WifiRequestEntry struct {
	BSSID MacAddress

	// Signal is the per-entry signal strength. The request schema has no
	// slot for it, so it is never written to the wire.
	Signal *int32
}

// Request is the uplink query message.
type Request struct {
	Wifis []WifiRequestEntry

	// Signal is the aggregate signal parameter. The service treats it as the
	// maximum number of nearby access points to return.
	Signal *int32

	// Noise is the aggregate noise parameter.
	Noise *int32

	// Source tags the request origin.
	Source *string
}

// Location is a resolved access point position.
type Location struct {
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lon"`
	Accuracy         int64   `json:"accuracy"`
	Altitude         int64   `json:"altitude"`
	AltitudeAccuracy int64   `json:"altitudeAccuracy"`
}

// WifiObservation pairs a BSSID with its location. Location is nil when the
// service does not know the access point.
type WifiObservation struct {
	BSSID    MacAddress `json:"bssid"`
	Location *Location  `json:"location"`
}

// Known reports whether the observation carries a location.
func (o WifiObservation) Known() bool {
	return o.Location != nil
}

// Response is the decoded downlink message, in server order.
type Response []WifiObservation

// Find returns the observation for the given BSSID. The server's ordering is
// not guaranteed to follow the request, so callers correlate by value.
func (r Response) Find(bssid MacAddress) (*WifiObservation, bool) {
	for i := range r {
		if r[i].BSSID == bssid {
			return &r[i], true
		}
	}
	return nil, false
}

// Known returns only the observations that carry a location.
func (r Response) Known() Response {
	known := make(Response, 0, len(r))
	for _, obs := range r {
		if obs.Known() {
			known = append(known, obs)
		}
	}
	return known
}
