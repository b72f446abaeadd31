package catalog

import "sort"

// Entry is one catalog item. All fields are optional on the wire.
type Entry struct {
	OfficialName string `json:"official_name,omitempty"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
}

// Snapshot maps entry id to entry as of one fetch.
type Snapshot map[string]Entry

// IDs returns the snapshot keys in ascending order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
