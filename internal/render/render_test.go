package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/source"
)

func record(path, content string) source.FileRecord {
	return source.FileRecord{Path: path, Content: []byte(content)}
}

func TestRenderBasicMarkdown(t *testing.T) {
	r := NewRenderer()
	page, err := r.Render(record("guide/setup.md", "# Getting Started\n\nSome *text*.\n"))
	require.NoError(t, err)

	assert.Equal(t, "Getting Started", page.Title)
	assert.Equal(t, "setup", page.Slug)
	assert.Equal(t, "guide/setup/index.html", page.OutputPath)
	assert.Contains(t, string(page.HTML), "<h1>Getting Started</h1>")
	assert.Contains(t, string(page.HTML), "<em>text</em>")
}

func TestRenderFrontmatterTitleWins(t *testing.T) {
	r := NewRenderer()
	page, err := r.Render(record("a.md", "---\ntitle: From Frontmatter\ndraft: true\n---\n# Heading Title\n"))
	require.NoError(t, err)

	assert.Equal(t, "From Frontmatter", page.Title)
	assert.Equal(t, true, page.Meta["draft"])
	assert.NotContains(t, string(page.HTML), "title:")
}

func TestRenderFallsBackToFileName(t *testing.T) {
	r := NewRenderer()
	page, err := r.Render(record("notes/Weekly Report.md", "no headings here\n"))
	require.NoError(t, err)

	assert.Equal(t, "Weekly Report", page.Title)
	assert.Equal(t, "weekly-report", page.Slug)
	assert.Equal(t, "notes/weekly-report/index.html", page.OutputPath)
}

func TestRenderIndexStaysDirectoryIndex(t *testing.T) {
	r := NewRenderer()
	page, err := r.Render(record("guide/index.md", "# Guide\n"))
	require.NoError(t, err)
	assert.Equal(t, "guide/index.html", page.OutputPath)
}

func TestRenderUnterminatedFrontmatterFails(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render(record("bad.md", "---\ntitle: oops\n# never closed\n"))
	require.Error(t, err)
	assert.True(t, builderrors.IsCategory(err, builderrors.CategoryTransform))
}

func TestSplitFrontmatter(t *testing.T) {
	fields, body, err := splitFrontmatter([]byte("---\ntitle: Hi\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hi", fields["title"])
	assert.Equal(t, "body\n", string(body))

	fields, body, err = splitFrontmatter([]byte("plain body\n"))
	require.NoError(t, err)
	assert.Nil(t, fields)
	assert.Equal(t, "plain body\n", string(body))

	fields, body, err = splitFrontmatter([]byte("---\n---\nempty\n"))
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Equal(t, "empty\n", string(body))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!"))
	assert.Equal(t, "cafe-au-lait", Slugify("Café au Lait"))
	assert.Equal(t, "v1-2-3", Slugify("v1.2.3"))
	assert.Equal(t, "", Slugify("!!!"))
}
