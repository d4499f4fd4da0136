// ABOUTME: Graph endpoints: the configured topology as DOT or SVG, optionally colored by a run's step status.
// ABOUTME: SVG output goes through the configured render function, usually a graphviz-backed cache.
package web

import (
	"errors"
	"net/http"

	"github.com/2389-research/scout/pipeline"
	"github.com/2389-research/scout/render"
	"github.com/2389-research/scout/topology"
	"github.com/go-chi/chi/v5"
)

const dotContentType = "text/vnd.graphviz; charset=utf-8"

func (s *Server) handleGraph(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Graph == nil {
		writeError(w, http.StatusNotFound, "no graph configured")
		return
	}
	w.Header().Set("Content-Type", dotContentType)
	_, _ = w.Write([]byte(topology.Serialize(s.cfg.Graph)))
}

func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Graph == nil {
		writeError(w, http.StatusNotFound, "no graph configured")
		return
	}
	s.writeSVG(w, r, topology.Serialize(s.cfg.Graph))
}

func (s *Server) handleRunGraph(w http.ResponseWriter, r *http.Request) {
	dot, ok := s.runGraphDOT(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", dotContentType)
	_, _ = w.Write([]byte(dot))
}

func (s *Server) handleRunGraphSVG(w http.ResponseWriter, r *http.Request) {
	dot, ok := s.runGraphDOT(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}
	s.writeSVG(w, r, dot)
}

// runGraphDOT serializes the graph with each step colored by its last recorded event.
func (s *Server) runGraphDOT(w http.ResponseWriter, runID string) (string, bool) {
	if s.cfg.Graph == nil {
		writeError(w, http.StatusNotFound, "no graph configured")
		return "", false
	}
	run, ok := s.lookupRun(w, runID)
	if !ok {
		return "", false
	}
	rows, err := s.cfg.Store.Events(run.ID)
	if err != nil {
		s.internalError(w, "list events", err)
		return "", false
	}
	events := make([]pipeline.Event, len(rows))
	for i, row := range rows {
		events[i] = pipeline.Event{Type: pipeline.EventType(row.Type), StepID: pipeline.StepID(row.StepID)}
	}
	return topology.SerializeWithStatus(s.cfg.Graph, topology.StatusFromEvents(events)), true
}

func (s *Server) writeSVG(w http.ResponseWriter, r *http.Request, dot string) {
	if s.cfg.Render == nil {
		writeError(w, http.StatusNotImplemented, "graph rendering is not configured")
		return
	}
	svg, err := s.cfg.Render(r.Context(), dot, "svg")
	if errors.Is(err, render.ErrGraphvizMissing) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "render graph", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}
