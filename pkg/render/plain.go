package render

import (
	"strings"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// PlainText strips markdown syntax and collapses the text onto one line.
// Code spans and blocks keep their content.
func PlainText(markdown string) string {
	source := []byte(markdown)
	doc := markdownParser.Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				b.Write(line.Value(source))
			}
		case *ast.AutoLink:
			b.Write(node.URL(source))
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

// preview is the first message of c as plain text, cut to maxLength.
func preview(c *chat.Chat, maxLength int) string {
	if len(c.Messages) == 0 {
		return c.Preview(maxLength)
	}
	return chat.TruncateText(PlainText(c.Messages[0].Content), maxLength)
}
