package completion

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxTitleWords caps generated titles.
const MaxTitleWords = 5

const titlePromptFormat = `Generate a short, concise title (max 5 words) for this conversation based on the first message: "%s". Return only the title text without any markdown formatting, quotes, or special characters.`

// TitlePrompt returns the prompt used to name a conversation from its first message.
func TitlePrompt(firstMessage string) string {
	return fmt.Sprintf(titlePromptFormat, firstMessage)
}

var (
	markdownParser  = goldmark.New().Parser()
	decorationChars = strings.NewReplacer("*", "", "_", "", "`", "")
)

const quoteChars = `"'“”‘’`

// CleanTitle turns raw model output into a short plain-text title: markdown
// is reduced to its text, stray emphasis characters and surrounding quotes
// are removed, and only the first line's first MaxTitleWords words are kept.
func CleanTitle(raw string) string {
	plain := markdownText(raw)
	plain = decorationChars.Replace(plain)

	var line string
	for _, l := range strings.Split(plain, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	line = strings.TrimSpace(strings.Trim(line, quoteChars))
	words := strings.Fields(line)
	if len(words) > MaxTitleWords {
		words = words[:MaxTitleWords]
	}
	return strings.Trim(strings.Join(words, " "), quoteChars)
}

// markdownText renders the text content of a markdown document, one line
// per block.
func markdownText(src string) string {
	source := []byte(src)
	doc := markdownParser.Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			buf.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
