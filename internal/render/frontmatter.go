package render

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

var frontmatterDelim = []byte("---")

// ErrUnterminatedFrontmatter is returned when a document opens a YAML
// frontmatter block but never closes it.
var ErrUnterminatedFrontmatter = errors.New("render: missing closing frontmatter delimiter")

// splitFrontmatter separates a leading YAML frontmatter block from the
// document body. A document without a leading delimiter line has no
// frontmatter; the whole input is body.
func splitFrontmatter(content []byte) (fields map[string]any, body []byte, err error) {
	if !bytes.HasPrefix(content, frontmatterDelim) {
		return nil, content, nil
	}
	rest := content[len(frontmatterDelim):]
	if len(rest) > 0 && rest[0] == '\r' {
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0] != '\n' {
		// A line like "---foo" is a thematic break candidate, not frontmatter.
		return nil, content, nil
	}
	rest = rest[1:]

	end := bytes.Index(rest, append([]byte("\n"), frontmatterDelim...))
	var raw []byte
	switch {
	case bytes.HasPrefix(rest, frontmatterDelim):
		raw, body = nil, rest[len(frontmatterDelim):]
	case end >= 0:
		raw = rest[:end]
		body = rest[end+1+len(frontmatterDelim):]
	default:
		return nil, nil, ErrUnterminatedFrontmatter
	}
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))

	fields = map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, nil, err
		}
	}
	return fields, body, nil
}
