package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"yardtrack/services"

	"go.uber.org/zap"
)

// BlobStore keeps uploaded files and returns their public URL.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, key, contentType string) (string, error)
}

const maxUploadBytes = 10 << 20

type ProcessingHandler struct {
	Life *services.Lifecycle
	// Blob is nil when blob storage is not configured.
	Blob BlobStore
	Log  *zap.Logger
}

func (h *ProcessingHandler) Start(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.StartProcessing(r.Context(), actorOf(r), truckID(r))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "Processing started", t)
}

func (h *ProcessingHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var edit services.DraftEdit
	if !decodeJSON(w, r, &edit) {
		return
	}
	t, err := h.Life.SaveDraft(r.Context(), actorOf(r), truckID(r), edit)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "Draft saved", t)
}

// optionalEdit decodes a draft edit sent along with a step move. No body means no edit.
func optionalEdit(w http.ResponseWriter, r *http.Request) (*services.DraftEdit, bool) {
	if r.ContentLength == 0 {
		return nil, true
	}
	var edit services.DraftEdit
	if !decodeJSON(w, r, &edit) {
		return nil, false
	}
	return &edit, true
}

func (h *ProcessingHandler) Advance(w http.ResponseWriter, r *http.Request) {
	edit, valid := optionalEdit(w, r)
	if !valid {
		return
	}
	t, err := h.Life.AdvanceStep(r.Context(), actorOf(r), truckID(r), edit)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "Moved to next step", t)
}

func (h *ProcessingHandler) Back(w http.ResponseWriter, r *http.Request) {
	edit, valid := optionalEdit(w, r)
	if !valid {
		return
	}
	t, err := h.Life.StepBack(r.Context(), actorOf(r), truckID(r), edit)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "Moved to previous step", t)
}

type approvalReason struct {
	Reason string `json:"reason"`
}

func (h *ProcessingHandler) RequestDocumentApproval(w http.ResponseWriter, r *http.Request) {
	var in approvalReason
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.Life.RequestDocumentApproval(r.Context(), actorOf(r), truckID(r), in.Reason)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	created(w, "Document approval requested", res)
}

func (h *ProcessingHandler) RequestSafetyApproval(w http.ResponseWriter, r *http.Request) {
	var in approvalReason
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.Life.RequestSafetyApproval(r.Context(), actorOf(r), truckID(r), in.Reason)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	created(w, "Safety approval requested", res)
}

// Upload attaches a document to the draft. A multipart body carrying a
// "file" is stored in blob storage first; a JSON body {name, url} refers to
// a file stored elsewhere.
func (h *ProcessingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id := truckID(r)
	var name, url string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if h.Blob == nil {
			fail(w, http.StatusServiceUnavailable, "File storage is not configured")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			fail(w, http.StatusBadRequest, "A file is required: "+err.Error())
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			fail(w, http.StatusBadRequest, "Failed to read file: "+err.Error())
			return
		}
		name = r.FormValue("name")
		if strings.TrimSpace(name) == "" {
			name = header.Filename
		}
		key := fmt.Sprintf("trucks/%s/uploads/%s", id, filepath.Base(header.Filename))
		url, err = h.Blob.Upload(r.Context(), data, key, header.Header.Get("Content-Type"))
		if err != nil {
			writeError(w, h.Log, r, err)
			return
		}
	} else {
		var in struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if !decodeJSON(w, r, &in) {
			return
		}
		name, url = in.Name, in.URL
	}

	t, err := h.Life.AttachUpload(r.Context(), actorOf(r), id, name, url)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	created(w, "Document uploaded", t)
}

func (h *ProcessingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.CompleteProcessing(r.Context(), actorOf(r), truckID(r))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "Processing completed", t)
}
