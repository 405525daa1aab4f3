package models

import "github.com/cloudwego/eino/schema"

// TextStream converts a message stream into its text fragments, skipping
// chunks without content.
func TextStream(in *schema.StreamReader[*schema.Message]) *schema.StreamReader[string] {
	return schema.StreamReaderWithConvert(in, func(m *schema.Message) (string, error) {
		if m == nil || m.Content == "" {
			return "", schema.ErrNoValue
		}
		return m.Content, nil
	})
}
