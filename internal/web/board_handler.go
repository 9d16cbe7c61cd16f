package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/presenter"
)

// BoardHandler renders the current snapshot.
type BoardHandler struct {
	source    SnapshotSource
	presenter *presenter.Presenter
	tmpl      *template.Template
}

func NewBoardHandler(source SnapshotSource, p *presenter.Presenter, tmpl *template.Template) *BoardHandler {
	return &BoardHandler{
		source:    source,
		presenter: p,
		tmpl:      tmpl,
	}
}

// Page serves the full HTML document.
func (h *BoardHandler) Page(w http.ResponseWriter, r *http.Request) {
	board := h.presenter.Build(h.source.Snapshot())

	// Render to a buffer so a template error does not leave a half page.
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "page", board); err != nil {
		log.WithError(err).Error("web: render page")
		http.Error(w, "failed to render board", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// JSON serves the board as JSON.
func (h *BoardHandler) JSON(w http.ResponseWriter, r *http.Request) {
	board := h.presenter.Build(h.source.Snapshot())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(board); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// renderFragment renders the part of the page that changes on each poll.
func renderFragment(tmpl *template.Template, board presenter.Board) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "board", board); err != nil {
		return "", err
	}
	return buf.String(), nil
}
