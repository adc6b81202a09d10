package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/rohits-web03/dispatch/internal/utils"
)

const multipartMemory = 32 << 20

// readUpload extracts one file from a multipart form, enforcing the upload
// size limit. The returned cleanup closes the file and removes temp files.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field string) (services.Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Fail(w, http.StatusRequestEntityTooLarge, string(services.KindValidation),
				fmt.Sprintf("File size exceeds %d MB limit", h.MaxUploadBytes>>20))
			return services.Upload{}, nil, false
		}
		invalidInput(w, "Invalid file upload form")
		return services.Upload{}, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		invalidInput(w, "No "+field+" provided")
		return services.Upload{}, nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	up := services.Upload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}
	cleanup := func() {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
	}
	return up, cleanup, true
}
