package wloc

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ResponsePreambleLen is the size of the server's response preamble. It is
// skipped without being parsed.
const ResponsePreambleLen = 10

// Response message field numbers.
const (
	responseWifisField protowire.Number = 2

	observationBSSIDField    protowire.Number = 1
	observationLocationField protowire.Number = 2

	locationLatitudeField         protowire.Number = 1
	locationLongitudeField        protowire.Number = 2
	locationAccuracyField         protowire.Number = 3
	locationAltitudeField         protowire.Number = 5
	locationAltitudeAccuracyField protowire.Number = 6
)

// DecodeResponse strips the response preamble from buf and decodes the
// remaining protobuf message.
func DecodeResponse(buf []byte) (Response, error) {
	if len(buf) < ResponsePreambleLen {
		return nil, &DecodeError{Detail: "truncated response"}
	}
	return UnmarshalResponse(buf[ResponsePreambleLen:])
}

// UnmarshalResponse decodes a response body without preamble.
func UnmarshalResponse(b []byte) (Response, error) {
	resp := Response{}

	err := walkFields(b, "response", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != responseWifisField || typ != protowire.BytesType {
			return skipField(num, typ, b, "response")
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseError("response wifi", n)
		}

		obs, err := unmarshalObservation(v)
		if err != nil {
			return 0, err
		}
		resp = append(resp, obs)
		return n, nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func unmarshalObservation(b []byte) (WifiObservation, error) {
	var (
		bssid    string
		location *wireLocation
	)

	err := walkFields(b, "wifi", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == observationBSSIDField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, parseError("wifi bssid", n)
			}
			bssid = v
			return n, nil

		case num == observationLocationField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseError("wifi location", n)
			}
			loc, err := unmarshalLocation(v)
			if err != nil {
				return 0, err
			}
			location = loc
			return n, nil
		}
		return skipField(num, typ, b, "wifi")
	})
	if err != nil {
		return WifiObservation{}, err
	}

	mac, err := ParseMAC(bssid)
	if err != nil {
		return WifiObservation{}, &DecodeError{Detail: "malformed bssid in response", Err: err}
	}

	return WifiObservation{
		BSSID:    mac,
		Location: location.toLocation(),
	}, nil
}

// wireLocation holds the fixed-point values as sent by the service.
type wireLocation struct {
	latitude         int64
	longitude        int64
	accuracy         int64
	altitude         int64
	altitudeAccuracy int64
}

// toLocation maps the wire location to the domain model. The unknown
// sentinel (and a missing location) become nil.
func (w *wireLocation) toLocation() *Location {
	if w == nil || IsUnknownSentinel(w.latitude) {
		return nil
	}
	return &Location{
		Latitude:         ToDegrees(w.latitude),
		Longitude:        ToDegrees(w.longitude),
		Accuracy:         w.accuracy,
		Altitude:         w.altitude,
		AltitudeAccuracy: w.altitudeAccuracy,
	}
}

func unmarshalLocation(b []byte) (*wireLocation, error) {
	loc := &wireLocation{}

	err := walkFields(b, "location", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *int64
		switch num {
		case locationLatitudeField:
			dst = &loc.latitude
		case locationLongitudeField:
			dst = &loc.longitude
		case locationAccuracyField:
			dst = &loc.accuracy
		case locationAltitudeField:
			dst = &loc.altitude
		case locationAltitudeAccuracyField:
			dst = &loc.altitudeAccuracy
		}
		if dst == nil || typ != protowire.VarintType {
			return skipField(num, typ, b, "location")
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, parseError("location", n)
		}
		*dst = int64(v) //nolint:gosec // int64 fields are two's complement on the wire
		return n, nil
	})
	if err != nil {
		return nil, err
	}

	return loc, nil
}

// fieldFunc consumes the value of one field and returns the bytes used.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walkFields iterates over the top-level fields of a message.
func walkFields(b []byte, msg string, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(msg+" tag", n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte, msg string) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, parseError(msg, n)
	}
	return n, nil
}

func parseError(what string, n int) error {
	return &DecodeError{Detail: "malformed " + what, Err: protowire.ParseError(n)}
}
