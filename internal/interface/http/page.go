package http

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/layout"
)

const pageTitle = "Evaluator AI - evaluate your QA chains."

type pageData struct {
	Title      string
	Shell      layout.View
	ToggleHref string
	Fields     []evalconfig.FieldOption
}

// PlaygroundPage renders the shell with the default form. ?vw= sets the
// viewport width used for the compact header and ?nav=open renders the
// drawer open. The page is a read-only preview; sessions and runs go
// through the JSON API.
func (h *Handler) PlaygroundPage(c *gin.Context) {
	nav := layout.NavClosed
	if c.Query("nav") == string(layout.NavOpen) {
		nav = layout.NavOpen
	}
	shell := layout.Restore(nav, viewportWidth(c), h.svc.NarrowThreshold())
	view := shell.View()
	c.HTML(http.StatusOK, "playground", pageData{
		Title:      pageTitle,
		Shell:      view,
		ToggleHref: toggleHref(view),
		Fields:     evalconfig.Options(),
	})
}

// toggleHref links to the page with the drawer flipped, keeping the width.
func toggleHref(view layout.View) string {
	next := layout.NavOpen
	if view.Opened {
		next = layout.NavClosed
	}
	q := url.Values{"nav": {string(next)}}
	if view.ViewportWidth > 0 {
		q.Set("vw", strconv.Itoa(view.ViewportWidth))
	}
	return "/playground?" + q.Encode()
}

var playgroundTemplate = template.Must(template.New("playground").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Evaluator AI</title>
<style>
body { margin: 0; font-family: sans-serif; background: #f8f9fa; }
header { display: flex; align-items: center; gap: 12px; padding: 12px 16px; background: #fff; border-bottom: 1px solid #dee2e6; }
header h1 { margin: 0; font-size: 20px; }
header.compact h1 { font-size: 14px; }
nav { width: 280px; padding: 16px; background: #fff; border-right: 1px solid #dee2e6; }
nav.closed { display: none; }
.layout { display: flex; }
main { flex: 1; padding: 16px; }
label { display: block; margin: 8px 0 4px; font-weight: bold; }
</style>
</head>
<body data-nav="{{.Shell.Nav}}" data-viewport="{{.Shell.ViewportWidth}}">
<header class="{{if .Shell.Narrow}}compact{{end}}">
<a id="burger" href="{{.ToggleHref}}" role="button" aria-label="Toggle navigation" aria-expanded="{{.Shell.Opened}}">&#9776;</a>
<h1>{{.Title}}</h1>
<span>Playground</span>
</header>
<div class="layout">
<nav id="sidebar" class="{{if .Shell.Opened}}open{{else}}closed{{end}}">
<form id="config">
<fieldset disabled>
{{range .Fields}}
<label for="{{.Field}}">{{.Field}}</label>
{{if eq (print .Kind) "enum"}}<select id="{{.Field}}" name="{{.Field}}">{{$d := print .Default}}{{range .Values}}<option value="{{.}}"{{if eq . $d}} selected{{end}}>{{.}}</option>{{end}}</select>
{{else if eq (print .Kind) "files"}}<input id="{{.Field}}" name="{{.Field}}" type="file" multiple>
{{else}}<input id="{{.Field}}" name="{{.Field}}" type="number" value="{{.Default}}">
{{end}}
{{end}}
</fieldset>
</form>
</nav>
<main id="playground">
<p>Default evaluation settings. Create a session through <code>/api/v1/playground/sessions</code> to upload documents and submit runs.</p>
<section id="results"></section>
</main>
</div>
</body>
</html>
`))
