// ABOUTME: Embedded HTML templates for the run list and run detail pages.
// ABOUTME: Answers are Markdown and are rendered with goldmark; raw HTML in them is dropped.
package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/2389-research/scout/research"
	"github.com/2389-research/scout/store"
	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

type templates struct {
	pages map[string]*template.Template
}

type indexData struct {
	Title string
	Runs  []store.Run
}

type runData struct {
	Title     string
	Run       *store.Run
	Answer    template.HTML
	Citations []research.Citation
	Events    []store.EventRow
}

func loadTemplates() (*templates, error) {
	funcs := template.FuncMap{"truncate": truncate}
	t := &templates{pages: map[string]*template.Template{}}
	for _, page := range []string{"index.html", "run.html"} {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		t.pages[page] = tmpl
	}
	return t, nil
}

func (t *templates) render(w http.ResponseWriter, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	runs, err := s.cfg.Store.ListRuns(50)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if err := s.templates.render(w, "index.html", indexData{Title: "Runs", Runs: runs}); err != nil {
		s.internalError(w, "render index", err)
	}
}

func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}
	events, err := s.cfg.Store.Events(run.ID)
	if err != nil {
		s.internalError(w, "list events", err)
		return
	}
	data := runData{Title: run.Topic, Run: run, Events: events}
	if len(run.Result) > 0 {
		var res research.Result
		if err := json.Unmarshal(run.Result, &res); err != nil {
			s.logger.Warn("stored result is not decodable", "run_id", run.ID, "error", err)
		} else {
			data.Answer = markdownToHTML(res.Answer)
			data.Citations = res.Citations
		}
	}
	if err := s.templates.render(w, "run.html", data); err != nil {
		s.internalError(w, "render run", err)
	}
}

// markdownToHTML converts Markdown to HTML. Raw HTML in the input is omitted.
func markdownToHTML(input string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(buf.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
