package cmds

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// writeStructured writes v as YAML or JSON. YAML output goes through the
// JSON encoding first, so both formats use the wire field names.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML, "":
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		// json.Number keeps millisecond timestamps as integers
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var generic interface{}
		if err := dec.Decode(&generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.Errorf("unknown format %q, expected yaml or json", format)
	}
}
