package chat

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidDocument = errors.New("document does not match schema")

// SchemaError lists every violation found in a document.
type SchemaError struct {
	Type   string
	Errors []string
}

func (e *SchemaError) Error() string {
	return "invalid " + e.Type + ": " + strings.Join(e.Errors, "; ")
}

func (e *SchemaError) Is(target error) bool { return target == ErrInvalidDocument }

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

func compiledSchemas() (map[string]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = map[string]*gojsonschema.Schema{}
		for name, s := range Schemas() {
			// the draft 2020-12 marker and the package $id are not needed
			// for validation
			s.Version = ""
			s.ID = ""
			b, err := json.Marshal(s)
			if err != nil {
				compileErr = errors.Wrapf(err, "marshaling %s schema", name)
				return
			}
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
			if err != nil {
				compileErr = errors.Wrapf(err, "compiling %s schema", name)
				return
			}
			compiled[name] = schema
		}
	})
	return compiled, compileErr
}

// Validate checks a decoded JSON document (maps, slices and scalars, as
// produced by json.Unmarshal into interface{}) against the schema of
// typeName, one of chat, message, preset or settings.
func Validate(typeName string, document interface{}) error {
	schemas, err := compiledSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[typeName]
	if !ok {
		return errors.Errorf("no schema for %q", typeName)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return errors.Wrapf(err, "validating %s", typeName)
	}
	if result.Valid() {
		return nil
	}
	ret := &SchemaError{Type: typeName}
	for _, e := range result.Errors() {
		ret.Errors = append(ret.Errors, e.String())
	}
	return ret
}

// DecodeChat validates b against the chat schema and decodes it.
func DecodeChat(b []byte) (*Chat, error) {
	var document interface{}
	if err := json.Unmarshal(b, &document); err != nil {
		return nil, errors.Wrap(err, "decoding chat")
	}
	if err := Validate("chat", document); err != nil {
		return nil, err
	}
	ret := &Chat{}
	if err := json.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrap(err, "decoding chat")
	}
	if ret.Messages == nil {
		ret.Messages = []Message{}
	}
	return ret, nil
}
