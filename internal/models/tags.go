package models

import "encoding/json"

// EncodeTags marshals a tag set to its JSON column representation.
// A nil or empty set encodes as "[]".
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeTags unmarshals a JSON tag column. Malformed or empty values
// decode to nil.
func DecodeTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

// HasTag reports whether tags contains the given tag.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
