package models

// Sighting is one recorded observation of an access point.
type Sighting struct {
	ID         string    `json:"id"`
	BSSID      string    `json:"bssid"`
	Location   Location  `json:"location"`
	Source     string    `json:"source,omitempty"`
	ObservedAt Timestamp `json:"observedAt"`
}

// PagedSightings is a page of sightings, newest first.
type PagedSightings struct {
	Items []Sighting        `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
