package chat

import (
	"github.com/invopop/jsonschema"
)

// Schemas returns the JSON schemas of the wire types, keyed by type name.
func Schemas() map[string]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}
	return map[string]*jsonschema.Schema{
		"chat":     reflector.Reflect(&Chat{}),
		"message":  reflector.Reflect(&Message{}),
		"preset":   reflector.Reflect(&Preset{}),
		"settings": reflector.Reflect(&Settings{}),
	}
}
