package inbound

import (
	"mime"
	"net/http"

	"github.com/shandysiswandi/csvpass/internal/pipeline/usecase"
)

type UploadResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

func (UploadResponse) Flat() bool {
	return true
}

// FileResponse streams a processed file as a CSV attachment.
type FileResponse struct {
	usecase.Download
}

func (f FileResponse) Stream(w http.ResponseWriter, r *http.Request) error {
	defer f.File.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	http.ServeContent(w, r, f.Name, f.ModTime, f.File)

	return nil
}
