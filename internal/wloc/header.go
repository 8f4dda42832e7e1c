package wloc

import (
	"encoding/binary"
	"math"
)

// Frame header constants.
const (
	ProtocolVersion uint16 = 0x0001

	flagA uint16 = 0x0000
	flagB uint16 = 0x0001
	flagC uint16 = 0x0000
)

// Default client identity presented to the service.
const (
	DefaultLocale     = "en_US"
	DefaultIdentifier = "com.apple.locationd"
	DefaultVersion    = "17.5.21F79"
	DefaultUserAgent  = "locationd/1756.1.15 CFNetwork/711.5.6 Darwin/14.0.0"
)

// ClientIdentity is the client signature written into every request frame
// and sent as the HTTP user agent.
type ClientIdentity struct {
	Locale     string
	Identifier string
	Version    string
	UserAgent  string
}

// DefaultClientIdentity returns the identity the service expects from a
// stock locationd client.
func DefaultClientIdentity() ClientIdentity {
	return ClientIdentity{
		Locale:     DefaultLocale,
		Identifier: DefaultIdentifier,
		Version:    DefaultVersion,
		UserAgent:  DefaultUserAgent,
	}
}

// Validate checks that every header string fits its 16-bit length field.
func (c ClientIdentity) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"locale", c.Locale},
		{"identifier", c.Identifier},
		{"version", c.Version},
	} {
		if len(f.value) > math.MaxUint16 {
			return &EncodeError{Field: f.name, Length: len(f.value)}
		}
	}
	return nil
}

// HeaderLen returns the encoded size of the frame header for c.
func (c ClientIdentity) HeaderLen() int {
	// version + 3 length prefixes + 3 flags
	return 2 + 3*2 + len(c.Locale) + len(c.Identifier) + len(c.Version) + 3*2
}

// EncodeHeader serializes the fixed request preamble for c.
func EncodeHeader(c ClientIdentity) ([]byte, error) {
	return appendHeader(make([]byte, 0, c.HeaderLen()), c)
}

func appendHeader(buf []byte, c ClientIdentity) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	buf = binary.BigEndian.AppendUint16(buf, ProtocolVersion)
	buf = appendString(buf, c.Locale)
	buf = appendString(buf, c.Identifier)
	buf = appendString(buf, c.Version)
	buf = binary.BigEndian.AppendUint16(buf, flagA)
	buf = binary.BigEndian.AppendUint16(buf, flagB)
	buf = binary.BigEndian.AppendUint16(buf, flagC)

	return buf, nil
}

// appendString writes a u16 length-prefixed string. Callers validate length.
func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s))) //nolint:gosec // checked by Validate
	return append(buf, s...)
}
