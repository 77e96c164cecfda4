// Package schema has the models and constants shared by all parts of covtrail.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Envelope is one decoded page of a repository's build history.
type Envelope struct {
	Builds []map[string]any // Build records on this page, in origin order
	Pages  int              // Total number of pages reported by the origin
	Extra  map[string]any   // Every other top-level field, passed through unchanged
	URL    string           // Resource the page was read from, when known
}

// BuildCoverage is a single normalized build coverage record.
// Fields holds the remaining origin fields; the url field is never present.
type BuildCoverage struct {
	CommitSHA   string
	RetrievedOn time.Time
	Fields      map[string]any
}

// Get returns the raw value of an origin field.
func (b BuildCoverage) Get(key string) (any, bool) {
	v, ok := b.Fields[key]
	return v, ok
}

// String returns a string field or "" when absent or not a string.
func (b BuildCoverage) String(key string) string {
	s, _ := b.Fields[key].(string)
	return s
}

// Float returns a numeric field as float64.
func (b BuildCoverage) Float(key string) (float64, bool) {
	switch v := b.Fields[key].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// MarshalJSON flattens the record back into a single JSON object.
func (b BuildCoverage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Fields)+2)
	maps.Copy(out, b.Fields)
	out[CommitSHAField] = b.CommitSHA
	out[RetrievedOnField] = EpochSeconds(b.RetrievedOn)
	return json.Marshal(out)
}

// UnmarshalJSON reads a flattened record, keeping numbers as json.Number.
func (b *BuildCoverage) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	sha, ok := raw[CommitSHAField].(string)
	if !ok {
		return fmt.Errorf("build coverage record has no string %s", CommitSHAField)
	}
	b.CommitSHA = sha
	b.RetrievedOn = time.Time{}
	if n, ok := raw[RetrievedOnField].(json.Number); ok {
		secs, err := n.Float64()
		if err != nil {
			return fmt.Errorf("invalid %s: %w", RetrievedOnField, err)
		}
		b.RetrievedOn = FromEpochSeconds(secs)
	}

	delete(raw, CommitSHAField)
	delete(raw, RetrievedOnField)
	b.Fields = raw
	return nil
}

// Item is the envelope handed to downstream consumers for every record.
type Item struct {
	BackendName     string            `json:"backend_name"`
	BackendVersion  string            `json:"backend_version"`
	CovtrailVersion string            `json:"covtrail_version"`
	Timestamp       float64           `json:"timestamp"`
	Origin          string            `json:"origin"`
	UUID            string            `json:"uuid"`
	UpdatedOn       float64           `json:"updated_on"`
	Category        Category          `json:"category"`
	SearchFields    map[string]string `json:"search_fields"`
	Tag             string            `json:"tag"`
	Data            BuildCoverage     `json:"data"`
}

// BackendInfo describes a registered backend.
type BackendInfo struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Categories   []Category `json:"categories"`
	HasArchiving bool       `json:"has_archiving"`
	HasResuming  bool       `json:"has_resuming"`
}
