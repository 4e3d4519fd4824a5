package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/store"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

func newUUID() string {
	return uuid.New().String()
}

type uploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

type analyzeRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload stores the multipart field "file" under a unique name
func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("No file part")
	}
	files := form.File["file"]
	if len(files) == 0 {
		// an empty file input arrives as a plain value
		if _, ok := form.Value["file"]; ok {
			return badRequest("No selected file")
		}
		return badRequest("No file part")
	}
	fh := files[0]
	if fh.Filename == "" {
		return badRequest("No selected file")
	}
	if !allowedFile(fh.Filename) {
		return badRequest("File type not allowed")
	}

	src, err := fh.Open()
	if err != nil {
		return internalError("failed to open uploaded file", err)
	}
	defer src.Close()

	name := storedName(s.newID(), fh.Filename)
	ctx := c.Request().Context()
	if err := s.store.Save(ctx, name, src, fh.Size, utils.DeclaredContentType(name)); err != nil {
		return internalError("failed to save file", err)
	}

	logrus.WithFields(logrus.Fields{
		"original": fh.Filename,
		"stored":   name,
		"size":     fh.Size,
	}).Info("image stored")

	return c.JSON(http.StatusOK, uploadResponse{
		Message:  "File uploaded successfully",
		Filename: name,
	})
}

// handleAnalyze classifies a previously uploaded image
func (s *Server) handleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Filename) == "" {
		return badRequest("No filename provided")
	}
	if strings.ContainsAny(req.Filename, `/\`) || strings.HasPrefix(req.Filename, ".") {
		return notFound("File not found", nil)
	}

	ctx := c.Request().Context()
	rc, err := s.store.Open(ctx, req.Filename)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("File not found", err)
	}
	if err != nil {
		return internalError("failed to open stored image", err)
	}
	defer rc.Close()

	img, err := decodeImage(rc)
	if err != nil {
		return &APIError{Status: http.StatusInternalServerError, Message: err.Error(), Cause: err}
	}

	pred, err := s.classifier.Classify(img)
	if err != nil {
		return &APIError{Status: http.StatusInternalServerError, Message: err.Error(), Cause: err}
	}

	logrus.WithFields(logrus.Fields{
		"file":           req.Filename,
		"classification": pred.Classification,
		"confidence":     pred.Confidence,
	}).Info("image analyzed")

	return c.JSON(http.StatusOK, pred)
}

// handleListImages returns what the store currently holds
func (s *Server) handleListImages(c echo.Context) error {
	objects, err := s.store.List(c.Request().Context())
	if err != nil {
		return internalError("failed to list images", err)
	}
	if objects == nil {
		objects = []store.Object{}
	}
	return c.JSON(http.StatusOK, objects)
}
