package models

// MaxLookupBSSIDs caps the number of BSSIDs in one batch lookup.
const MaxLookupBSSIDs = 100

// Location is a resolved access point position in degrees.
type Location struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	Accuracy         int64   `json:"accuracy"`
	Altitude         int64   `json:"altitude"`
	AltitudeAccuracy int64   `json:"altitudeAccuracy"`
}

// Observation pairs a BSSID with its location. Location is null when the
// lookup service does not know the access point.
type Observation struct {
	BSSID    string    `json:"bssid"`
	Location *Location `json:"location"`
}

// LookupRequest is the body of a batch lookup.
type LookupRequest struct {
	BSSIDs []string `json:"bssids"`

	// Signal optionally overrides the aggregate signal parameter.
	Signal *int32 `json:"signal,omitempty"`

	// Source optionally tags the upstream request and the recorded sightings.
	Source string `json:"source,omitempty"`
}

// Validate checks the request shape. BSSID syntax is checked by the lookup.
func (r *LookupRequest) Validate() []FieldError {
	var errs []FieldError
	switch {
	case len(r.BSSIDs) == 0:
		errs = append(errs, FieldError{Field: "bssids", Message: "at least one BSSID is required", Code: "REQUIRED"})
	case len(r.BSSIDs) > MaxLookupBSSIDs:
		errs = append(errs, FieldError{Field: "bssids", Message: "too many BSSIDs", Code: "TOO_MANY"})
	}
	if len(r.Source) > 64 {
		errs = append(errs, FieldError{Field: "source", Message: "must be at most 64 characters", Code: "TOO_LONG"})
	}
	return errs
}

// LookupResponse lists every observation the lookup service returned, in
// server order.
type LookupResponse struct {
	Items []Observation `json:"items"`
	Known int           `json:"known"`
}
