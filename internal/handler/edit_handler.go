package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go-image-playground/internal/model"
	"go-image-playground/internal/upstream"
)

// maxFormMemory bounds how much of the parsed form stays in RAM; larger
// uploads spill to temp files.
const maxFormMemory = 32 << 20

// editSubmitter is what the handler needs from the forwarder.
type editSubmitter interface {
	SubmitEdit(ctx context.Context, req *model.EditRequest) (*upstream.Response, error)
}

type EditHandler struct {
	forwarder     editSubmitter
	maxUploadSize int64
}

func NewEditHandler(forwarder editSubmitter, maxUploadSize int64) *EditHandler {
	return &EditHandler{forwarder: forwarder, maxUploadSize: maxUploadSize}
}

// Edit parses and validates the multipart form, forwards it upstream, and
// relays the result: a buffered JSON document, or a live event stream when
// the client asked for one.
func (h *EditHandler) Edit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := buildEditRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	// One diagnostic line per accepted request. Image bytes and credentials
	// never appear here.
	slog.Info("image edit request",
		"size", req.Size,
		"quality", req.Quality,
		"n", req.Count,
		"model", req.Model,
		"stream", req.Stream,
		"has_mask", req.Mask != nil,
	)

	resp, err := h.forwarder.SubmitEdit(r.Context(), req)
	if err != nil {
		slog.Error("image edit failed", "error", err)
		writeError(w, err)
		return
	}
	defer resp.Body.Close()

	if req.Stream {
		relayStream(w, resp)
		return
	}

	relayJSON(w, resp)
}

// buildEditRequest maps the incoming form onto the normalized edit request,
// applying the form defaults.
func buildEditRequest(r *http.Request) (*model.EditRequest, error) {
	image, err := readFilePart(r, "image")
	if err != nil {
		return nil, err
	}
	mask, err := readFilePart(r, "mask")
	if err != nil {
		return nil, err
	}

	req := &model.EditRequest{
		Prompt:            formValue(r, "prompt"),
		Size:              formValueDefault(r, "size", model.DefaultSize),
		Quality:           formValueDefault(r, "quality", model.DefaultQuality),
		Count:             model.ParseCount(formValue(r, "n")),
		Model:             formValueDefault(r, "model", model.DefaultModel),
		User:              formValue(r, "user"),
		InputFidelity:     formValue(r, "input_fidelity"),
		OutputFormat:      formValue(r, "output_format"),
		OutputCompression: formValue(r, "output_compression"),
		Background:        formValue(r, "background"),
		Stream:            formValue(r, "stream") == "true",
		PartialImages:     formValue(r, "partial_images"),
	}

	if image != nil {
		req.Image = *image
	}
	req.Mask = mask

	return req, nil
}

// readFilePart loads one uploaded file into memory. A missing part is not an
// error here; required-ness is the validator's call.
func readFilePart(r *http.Request, field string) (*model.FilePart, error) {
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, nil
	}

	file, err := headers[0].Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &model.FilePart{Name: headers[0].Filename, Data: data}, nil
}

func formValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}

func formValueDefault(r *http.Request, field string, fallback string) string {
	if value := formValue(r, field); value != "" {
		return value
	}
	return fallback
}

// relayJSON buffers the upstream body and relays it with the upstream
// status. A body that does not parse as JSON is treated as an upstream
// failure; whatever it was, it does not reach the browser.
func relayJSON(w http.ResponseWriter, resp *upstream.Response) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("failed to read upstream response", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Image edit failed")
		return
	}

	if !json.Valid(body) {
		slog.Error("upstream response is not JSON", "status", resp.Status, "content_type", resp.ContentType)
		writeMessage(w, http.StatusInternalServerError, "Image edit failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(body)
}

// relayStream copies the upstream body to the client as it arrives. Flushing
// per chunk keeps browser backpressure coupled to the upstream connection.
func relayStream(w http.ResponseWriter, resp *upstream.Response) {
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}
