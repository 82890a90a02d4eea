package sqlite

import "encoding/json"

// encodeStrings/decodeStrings store a []string as a JSON array column,
// matching entries.tags/staging_entries.projects_list's declared TEXT
// DEFAULT '[]' shape.
func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
