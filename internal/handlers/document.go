package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
)

const (
	maxDocumentBytes   = 10 << 20
	maxMultipartMemory = 12 << 20
	formFieldFile      = "file"
	formFieldName      = "name"
)

type documentParams struct {
	ID         string `form:"id" validate:"required,uuid"`
	DocumentID string `form:"documentId" validate:"required,uuid"`
}

// DocumentHandler serves documents attached to the caller's applications.
type DocumentHandler struct {
	documents *services.DocumentService
}

func NewDocumentHandler(documents *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// DocumentRouter registers document routes under /applications/{id}/documents.
func DocumentRouter(r chi.Router, b *pipeline.Builder, documents *services.DocumentService) {
	h := NewDocumentHandler(documents)
	app := pipeline.SchemaOf[pipeline.IDParam]()
	doc := pipeline.SchemaOf[documentParams]()
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/", Auth: pipeline.RequiredAuth, Params: app, Handle: h.List},
		{Method: http.MethodPost, Pattern: "/", Auth: pipeline.RequiredAuth, Params: app, Handle: h.Upload},
		{Method: http.MethodGet, Pattern: "/{documentId}/content", Auth: pipeline.RequiredAuth, Params: doc, Handle: h.Download},
		{Method: http.MethodDelete, Pattern: "/{documentId}", Auth: pipeline.RequiredAuth, Params: doc, Handle: h.Delete},
	})
}

func (h *DocumentHandler) List(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	docs, err := h.documents.List(ctx, c.Identity.UserID, params.ID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(docs), nil
}

// Upload reads a multipart form with a "file" part and an optional "name".
func (h *DocumentHandler) Upload(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	if !h.documents.Enabled() {
		return pipeline.Result{}, services.ErrStorageDisabled
	}
	params := pipeline.Params[pipeline.IDParam](c)

	r := c.Request
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Result{}, err
		}
		return pipeline.Result{}, pipeline.BadRequest("Expected a multipart form upload")
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		return pipeline.Result{}, pipeline.BadRequest("A file is required")
	}
	data, err := readFileLimited(file, maxDocumentBytes)
	_ = file.Close()
	if err != nil {
		return pipeline.Result{}, pipeline.BadRequest(err.Error())
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	doc, err := h.documents.Upload(ctx, c.Identity.UserID, params.ID, services.Upload{
		Name:        strings.TrimSpace(r.FormValue(formFieldName)),
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Created(doc), nil
}

// Download streams the document body instead of an envelope.
func (h *DocumentHandler) Download(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[documentParams](c)
	doc, body, err := h.documents.Open(ctx, c.Identity.UserID, params.ID, params.DocumentID)
	if err != nil {
		return pipeline.Result{}, err
	}

	return pipeline.Result{Raw: func(w http.ResponseWriter) {
		defer body.Close()
		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, body)
	}}, nil
}

func (h *DocumentHandler) Delete(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[documentParams](c)
	if err := h.documents.Delete(ctx, c.Identity.UserID, params.ID, params.DocumentID); err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(pipeline.Message{Message: "Document deleted"}), nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("Failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("File exceeds the 10 MB limit")
	}
	return data, nil
}
