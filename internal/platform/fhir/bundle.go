package fhir

// Bundle represents a FHIR searchset Bundle. Total and Entry are always
// emitted, so an empty search reads {"total":0,"entry":[]}.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        int           `json:"total"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	Resource interface{} `json:"resource"`
}

// NewSearchBundle creates a searchset Bundle from already mapped resources,
// keeping their order.
func NewSearchBundle(resources []interface{}) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{Resource: r}
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        len(entries),
		Entry:        entries,
	}
}
