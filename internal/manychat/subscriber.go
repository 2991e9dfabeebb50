package manychat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Custom field names used for lead qualification.
const (
	FieldICPStatus        = "icp_status"
	FieldAnalysisRaw      = "analysis_raw"
	FieldAnalysisComplete = "analysis_complete"

	StatusQualified   = "Qualified"
	StatusUnqualified = "Unqualified"
)

// Subscriber is the subset of ManyChat subscriber info this service reads.
type Subscriber struct {
	CustomFields CustomFields `json:"custom_fields"`
}

// CustomFields maps field name to value. ManyChat returns an array of
// {name, value} objects; a plain object is accepted as well.
type CustomFields map[string]any

func (f *CustomFields) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	out := CustomFields{}
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		var items []struct {
			Name  string `json:"name"`
			Value any    `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		for _, item := range items {
			out[item.Name] = item.Value
		}
	case trimmed[0] == '{':
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		for k, v := range m {
			out[k] = v
		}
	default:
		return fmt.Errorf("custom_fields: unexpected JSON %s", string(trimmed[:1]))
	}
	*f = out
	return nil
}

// Has reports whether name holds a non-null, non-empty value.
func (f CustomFields) Has(name string) bool {
	v, ok := f[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// AlreadyAnalyzed reports whether lead analysis has run for this subscriber.
// A nil subscriber counts as not analyzed.
func (s *Subscriber) AlreadyAnalyzed() bool {
	if s == nil {
		return false
	}
	return s.CustomFields.Has(FieldICPStatus) || s.CustomFields.Has(FieldAnalysisComplete)
}
