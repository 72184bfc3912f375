package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// jpg only in the original; png is accepted as well since both are images
// the profile UI can render.
var allowedImageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

type UploadHandler struct {
	dir      string
	maxBytes int64
	log      *slog.Logger
}

func NewUploadHandler(dir string, maxBytes int64, log *slog.Logger) *UploadHandler {
	return &UploadHandler{dir: dir, maxBytes: maxBytes, log: log}
}

func (h *UploadHandler) Upload(ctx *gin.Context) {
	file, err := ctx.FormFile("image")

	if err != nil {
		RespondBadRequest(ctx, `multipart field "image" is required`, nil)
		return
	}

	if h.maxBytes > 0 && file.Size > h.maxBytes {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "file_too_large", "Uploaded file exceeds the size limit", nil)
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))

	if _, ok := allowedImageExts[ext]; !ok {
		RespondBadRequest(ctx, "Only jpg and png files are allowed", nil)
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		h.log.Error("upload: create upload dir", "err", err, "dir", h.dir)
		RespondInternal(ctx, "Could not store image")
		return
	}

	// never trust the client filename on disk
	name := uuid.NewString() + ext
	dst := filepath.Join(h.dir, name)

	if err := ctx.SaveUploadedFile(file, dst); err != nil {
		h.log.Error("upload: save file", "err", err, "dst", dst)
		RespondInternal(ctx, "Could not store image")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Image uploaded...",
		"file":    name,
	})
}
