package markov

import (
	"encoding/json"
	"io"
)

// ExportedChain is the serializable representation of a chain, used by
// WriteJSON for inspection.
type ExportedChain struct {
	Order int            `json:"order"`
	Links []ExportedLink `json:"links"`
}

// ExportedLink is a single key and its successors within an ExportedChain.
type ExportedLink struct {
	Key        []string `json:"key"`
	Successors []string `json:"successors"`
}

// Export returns the serializable form of the chain, keys in first-seen order.
func (c *Chain) Export() ExportedChain {
	exported := ExportedChain{
		Order: c.order,
		Links: make([]ExportedLink, 0, len(c.keys)),
	}
	for _, key := range c.keys {
		exported.Links = append(exported.Links, ExportedLink{
			Key:        key.Tokens(),
			Successors: c.Successors(key),
		})
	}
	return exported
}

// WriteJSON writes the chain as indented JSON to w.
func (c *Chain) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c.Export())
}
