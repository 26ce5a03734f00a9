package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
)

func TestRenderEmail(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	html, err := r.Render(mail.TemplateEmail, mail.RenderContext{
		Language: "ES",
		Header:   "Novedades",
		Blocks: []mail.BlockView{
			{Title: "Primero", Body: "Cuerpo <b>uno</b>"},
			{Title: "Segundo", HasLink: true, LinkLabel: "Abrir", LinkURL: "https://example.com/a?b=1"},
		},
		Footer: &mail.Footer{FollowText: "Síguenos", UnsubscribeText: "Darse de baja"},
	})
	require.NoError(t, err)

	assert.Contains(t, html, `<html lang="es">`)
	assert.Contains(t, html, "Novedades")
	assert.Less(t, strings.Index(html, "Primero"), strings.Index(html, "Segundo"), "blocks keep their order")
	assert.Contains(t, html, "Cuerpo &lt;b&gt;uno&lt;/b&gt;", "body is escaped")
	assert.Contains(t, html, `href="https://example.com/a?b=1"`)
	assert.Contains(t, html, "Abrir")
	assert.Contains(t, html, "Síguenos")
	assert.Contains(t, html, "Darse de baja")
}

func TestRenderWithoutFooter(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	html, err := r.Render(mail.TemplateEmail, mail.RenderContext{
		Header: "BUG from user id:42",
		Blocks: []mail.BlockView{{Body: "Crash"}},
	})
	require.NoError(t, err)

	assert.Contains(t, html, `<html lang="en">`)
	assert.NotContains(t, html, "border-top")
	assert.Equal(t, 1, strings.Count(html, `class="block"`))
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, err = r.Render("invoice", mail.RenderContext{})
	assert.ErrorIs(t, err, db.ErrNotFound)
}
