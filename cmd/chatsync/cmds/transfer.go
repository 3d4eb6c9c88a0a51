package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/iancoleman/strcase"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// filterChats keeps the chats whose title matches pattern. An empty pattern
// keeps everything.
func filterChats(chats []*chat.Chat, pattern string) ([]*chat.Chat, error) {
	if pattern == "" {
		return chats, nil
	}
	ret := make([]*chat.Chat, 0, len(chats))
	for _, c := range chats {
		matching, err := glob.Match(pattern, c.Title)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid title pattern %q", pattern)
		}
		if matching {
			ret = append(ret, c)
		}
	}
	return ret, nil
}

// writeTemplate renders tmpl once per chat. The template sees the chat and
// the sprig functions.
func writeTemplate(w io.Writer, tmpl string, chats []*chat.Chat) error {
	t, err := template.New("chat").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return errors.Wrap(err, "parsing template")
	}
	for _, c := range chats {
		if err := t.Execute(w, c); err != nil {
			return errors.Wrapf(err, "rendering chat %s", c.ID)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// exportFileName derives a file name from the title, with a short id suffix
// so that chats with the same title do not overwrite each other.
func exportFileName(c *chat.Chat, format string) string {
	name := strcase.ToKebab(c.Title)
	if name == "" {
		name = "chat"
	}
	id := c.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s.%s", name, id, format)
}

// exportToDir writes one file per chat and returns the paths written.
func exportToDir(dir string, format string, chats []*chat.Chat) ([]string, error) {
	if format == "" {
		format = FormatYAML
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating export directory")
	}
	ret := make([]string, 0, len(chats))
	for _, c := range chats {
		path := filepath.Join(dir, exportFileName(c, format))
		f, err := os.Create(path)
		if err != nil {
			return ret, errors.Wrapf(err, "creating %s", path)
		}
		err = writeStructured(f, format, c)
		closeErr := f.Close()
		if err != nil {
			return ret, errors.Wrapf(err, "writing %s", path)
		}
		if closeErr != nil {
			return ret, errors.Wrapf(closeErr, "closing %s", path)
		}
		ret = append(ret, path)
	}
	return ret, nil
}

// readChats reads a file written by export: a single chat or a list of
// chats, as YAML or JSON. Every chat is validated against the chat schema.
func readChats(r io.Reader) ([]*chat.Chat, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// JSON is valid YAML, one decoder handles both formats
	var document interface{}
	if err := yaml.Unmarshal(b, &document); err != nil {
		return nil, errors.Wrap(err, "decoding chats")
	}

	var documents []interface{}
	switch v := document.(type) {
	case []interface{}:
		documents = v
	case map[string]interface{}:
		documents = []interface{}{v}
	case nil:
		return nil, nil
	default:
		return nil, errors.Errorf("expected a chat or a list of chats, got %T", document)
	}

	ret := make([]*chat.Chat, 0, len(documents))
	for i, d := range documents {
		encoded, err := json.Marshal(d)
		if err != nil {
			return nil, errors.Wrapf(err, "chat %d", i)
		}
		c, err := chat.DecodeChat(encoded)
		if err != nil {
			return nil, errors.Wrapf(err, "chat %d", i)
		}
		ret = append(ret, c)
	}
	return ret, nil
}
