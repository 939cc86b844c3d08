// Package models holds the JSON bodies of the air quality map API.
package models

import (
	"encoding/json"
	"time"
)

// ListMeta describes a bounded list response.
type ListMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// Timestamp renders as RFC 3339 in UTC with second precision.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var parsed time.Time
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
