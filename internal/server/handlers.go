package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fmueller/whisper-api/internal/upload"
	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	welcomeMessage    = "Welcome to the Whisper API! The server is running."
	msgNoFilePart     = "No file part in request"
	msgNoSelectedFile = "No selected file"

	fileField     = "file"
	languageField = "language"
)

type messageResponse struct {
	Message string `json:"message"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) home(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: welcomeMessage})
}

func (s *Server) transcribe(c echo.Context) error {
	mr, err := c.Request().MultipartReader()
	if err != nil {
		s.logger.Debug("request is not a multipart form", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgNoFilePart})
	}

	form, err := s.store.Receive(mr, fileField)
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return err
	case errors.Is(err, upload.ErrNoFile):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgNoFilePart})
	case errors.Is(err, upload.ErrMalformedForm):
		s.logger.Debug("unreadable multipart form", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgNoFilePart})
	case errors.Is(err, upload.ErrEmptyFilename):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgNoSelectedFile})
	case err != nil:
		s.logger.Error("failed to store upload", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	file := form.File
	defer s.discard(file)

	if s.metrics != nil {
		s.metrics.uploadBytes.Observe(float64(file.Size))
	}

	language := requestLanguage(form.Values, s.language)
	s.logger.Info("transcribing...", zap.String("upload", file.Name), zap.Int64("bytes", file.Size), zap.String("language", language))
	started := time.Now()

	result, err := s.engine.Transcribe(c.Request().Context(), whisper.TranscriptionRequest{
		AudioPath: file.Path,
		Language:  language,
	})
	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.observeTranscription(err, elapsed)
	}
	if err != nil {
		s.logger.Warn("transcription failed", zap.String("upload", file.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	s.logger.Info("transcription finished",
		zap.String("upload", file.Name),
		zap.Duration("elapsed", elapsed),
		zap.String("detected_language", result.Language),
		zap.Int("segments", len(result.Segments)),
	)
	return c.JSON(http.StatusOK, transcriptionResponse{Text: result.Text})
}

func (s *Server) discard(file *upload.File) {
	if err := file.Remove(); err != nil {
		s.logger.Warn("failed to remove upload", zap.String("path", file.Path), zap.Error(err))
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
		if he.Internal != nil {
			s.logger.Debug("request failed", zap.Int("status", code), zap.Error(he.Internal))
		}
	} else {
		s.logger.Error("unhandled request error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: message})
	}
	if err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

func requestLanguage(values url.Values, fallback string) string {
	if lang := strings.TrimSpace(values.Get(languageField)); lang != "" {
		return lang
	}
	return fallback
}
