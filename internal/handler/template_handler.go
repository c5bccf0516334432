package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-image-playground/internal/template"
)

type TemplateHandler struct {
	store *template.Store
}

func NewTemplateHandler(store *template.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

type templateName struct {
	Name string `json:"name"`
}

func (h *TemplateHandler) List(w http.ResponseWriter, _ *http.Request) {
	names := h.store.List()

	out := make([]templateName, 0, len(names))
	for _, name := range names {
		out = append(out, templateName{Name: name})
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.store.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tpl)
}
