package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"photomemo/internal/blob"
)

type UploadHandler struct {
	Uploads *blob.Uploads
	Log     logrus.FieldLogger
}

type presignReq struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	var req presignReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	up, err := h.Uploads.Presign(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}
