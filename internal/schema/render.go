package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RenderInstructions renders the format instructions embedded in every prompt. Properties
// keep the declared field order so the model sees them the way they are stored.
func (s *Schema) RenderInstructions() string {
	var b strings.Builder
	b.WriteString("The output must be a single JSON object that conforms to the JSON schema below. ")
	b.WriteString("Use the property names exactly as written. Omit optional properties the document does not support; never emit null.\n\n")
	b.WriteString("```json\n{\n  \"type\": \"object\",\n  \"properties\": {\n")
	for i, f := range s.Fields {
		fmt.Fprintf(&b, "    %s: %s", marshal(f.Name), marshal(f.property(true)))
		if i < len(s.Fields)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  },\n  \"required\": %s\n}\n```", marshal(s.Required()))
	return b.String()
}

func marshal(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSpace(buf.String())
}
