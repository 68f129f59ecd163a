package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/laskarbuah/freelance-portal/internal/objectstore"
	"github.com/laskarbuah/freelance-portal/internal/upload"
)

const fileField = "file"

// uploadAttendancePhoto stores a photo under a generated key. The part named
// "file" is preferred; otherwise the first file part is taken.
// @Router /api/upload-s3 [post]
func (s *Server) uploadAttendancePhoto(c *gin.Context) {
	form, ok := s.readForm(c)
	if !ok {
		return
	}

	header := pickFile(form, fileField)
	if header == nil {
		respondWithError(c, s.logger, http.StatusBadRequest, upload.ErrNoFile, upload.ErrNoFile.Error())
		return
	}

	file, part, err := openPart(header)
	if err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, upload.ErrMissingFile.Error())
		return
	}
	defer part.Close()

	up, err := s.uploads.UploadGenerated(c.Request.Context(), file)
	if err != nil {
		s.respondUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": up.PublicURL})
}

// uploadProfilePhoto stores a photo under a key derived from kode_user,
// overwriting the previous one.
// @Router /api/upload-profile-s3 [post]
func (s *Server) uploadProfilePhoto(c *gin.Context) {
	form, ok := s.readForm(c)
	if !ok {
		return
	}

	if len(form.File) == 0 && len(form.Value) == 0 {
		respondWithError(c, s.logger, http.StatusBadRequest, upload.ErrNoFile, upload.ErrNoFile.Error())
		return
	}

	headers := form.File[fileField]
	if len(headers) == 0 {
		respondWithError(c, s.logger, http.StatusBadRequest, upload.ErrMissingFile, upload.ErrMissingFile.Error())
		return
	}

	var kodeUser string
	if values := form.Value["kode_user"]; len(values) > 0 {
		kodeUser = values[0]
	}

	file, part, err := openPart(headers[0])
	if err != nil {
		respondWithError(c, s.logger, http.StatusBadRequest, err, upload.ErrMissingFile.Error())
		return
	}
	defer part.Close()

	up, err := s.uploads.UploadProfile(c.Request.Context(), kodeUser, file)
	if err != nil {
		s.respondUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": up.PublicURL, "success": true})
}

// readForm parses the multipart body within the configured size limit
func (s *Server) readForm(c *gin.Context) (*multipart.Form, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Storage.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(c, s.logger, http.StatusRequestEntityTooLarge, err, "File too large")
			return nil, false
		}
		respondWithError(c, s.logger, http.StatusBadRequest, err, upload.ErrNoFile.Error())
		return nil, false
	}
	return form, true
}

func (s *Server) respondUploadError(c *gin.Context, err error) {
	if upload.IsValidation(err) {
		respondWithError(c, s.logger, http.StatusBadRequest, err, err.Error())
		return
	}

	message := "Failed to upload to S3"
	var se *objectstore.Error
	if errors.As(err, &se) {
		message = fmt.Sprintf("Failed to upload to S3: %s (%s)", se.Message, se.Name)
	}
	respondWithError(c, s.logger, http.StatusInternalServerError, err, message)
}

// pickFile returns the part named field, or else the file part whose field
// name sorts first. Parsed forms do not keep part order.
func pickFile(form *multipart.Form, field string) *multipart.FileHeader {
	if headers := form.File[field]; len(headers) > 0 {
		return headers[0]
	}

	names := make([]string, 0, len(form.File))
	for name, headers := range form.File {
		if len(headers) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return form.File[names[0]][0]
}

// openPart opens h for upload. The caller closes the returned part.
func openPart(h *multipart.FileHeader) (*upload.File, multipart.File, error) {
	f, err := h.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file part: %w", err)
	}
	return &upload.File{
		Filename:    h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Size:        h.Size,
		Body:        f,
	}, f, nil
}
