// Package render turns markdown file records into HTML pages. It is the
// canonical per-item transform of the build graph: pure, deterministic, and
// safe to recompute for any single item without touching its siblings.
package render

import (
	"bytes"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/source"
)

// Page is one rendered document.
type Page struct {
	SourcePath string
	Title      string
	Slug       string
	// OutputPath is the artifact path relative to the output root,
	// slash-separated.
	OutputPath string
	HTML       []byte
	// Meta carries the raw frontmatter fields for downstream consumers.
	Meta map[string]any
}

// Renderer converts markdown to HTML pages. It is safe for concurrent use;
// per-item tasks share one instance.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with CommonMark defaults.
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New()}
}

// Render transforms one file record. The page title comes from frontmatter
// when present, otherwise from the first heading, otherwise from the file
// name. Errors carry the transform category with the record path attached.
func (r *Renderer) Render(rec source.FileRecord) (Page, error) {
	fields, body, err := splitFrontmatter(rec.Content)
	if err != nil {
		return Page{}, builderrors.TransformFailed(rec.Path, err)
	}

	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return Page{}, builderrors.TransformFailed(rec.Path, err)
	}

	title := titleFromFields(fields)
	if title == "" {
		title = firstHeading(body)
	}
	base := strings.TrimSuffix(path.Base(rec.Path), path.Ext(rec.Path))
	if title == "" {
		title = base
	}

	slug := Slugify(base)
	if slug == "" {
		slug = "untitled"
	}

	return Page{
		SourcePath: rec.Path,
		Title:      title,
		Slug:       slug,
		OutputPath: outputPath(rec.Path, slug),
		HTML:       buf.Bytes(),
		Meta:       fields,
	}, nil
}

func titleFromFields(fields map[string]any) string {
	if fields == nil {
		return ""
	}
	if t, ok := fields["title"].(string); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

// firstHeading returns the text of the document's first heading, if any.
func firstHeading(body []byte) string {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))
	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering || title != "" {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok {
			var b strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*gmast.Text); ok {
					b.Write(t.Segment.Value(body))
				}
			}
			title = strings.TrimSpace(b.String())
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

// outputPath maps content/dir/File Name.md to content/dir/file-name/index.html,
// with index.md staying the directory index.
func outputPath(sourcePath, slug string) string {
	dir := path.Dir(sourcePath)
	if dir == "." {
		dir = ""
	}
	if slug == "index" {
		return path.Join(dir, "index.html")
	}
	return path.Join(dir, slug, "index.html")
}
