package http_handler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp"

	"github.com/khanhng-dev/gridstore/internal/config"
	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

const defaultContentType = "application/octet-stream"

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	service port.FileService
}

func NewServer(cfg *config.Config, service port.FileService) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:         int(cfg.App.MaxFileSize),
		StreamRequestBody: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:     app,
		cfg:     cfg,
		service: service,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/", s.handleIndex)
	s.app.Post("/upload", s.handleUpload)
	s.app.Get("/files", s.handleList)
	s.app.Get("/files/:filename", s.handleFetch)
	s.app.Delete("/files/:id", s.handleDelete)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown()
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func (s *Server) handleList(c *fiber.Ctx) error {
	records, err := s.service.List(c.Context())
	if err != nil {
		sdklogger.Errorw("List failed", "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, "Error retrieving files")
	}
	if records == nil {
		records = []*domain.FileRecord{}
	}
	return c.JSON(records)
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	contentType := c.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Content-Type must be multipart/form-data")
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid Content-Type")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing boundary in Content-Type")
	}

	// Read the raw request body as a stream so large uploads never sit
	// in memory whole.
	bodyStream := c.Context().RequestBodyStream()
	if bodyStream == nil {
		bodyStream = bytes.NewReader(c.Body())
	}
	mr := multipart.NewReader(bodyStream, boundary)

	var fileName string
	var fileType string
	var src io.Reader

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.sendJSONError(c, fiber.StatusInternalServerError, fmt.Sprintf("Failed to read multipart: %v", err))
		}

		// Only the "file" field carries the upload; other parts, file
		// parts under different names included, are skipped.
		if part.FormName() == "file" && part.FileName() != "" {
			fileName = part.FileName()
			fileType = part.Header.Get("Content-Type")
			src = part
			break
		}
		_ = part.Close()
	}

	if src == nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "No file uploaded")
	}
	if fileType == "" {
		fileType = defaultContentType
	}

	record, err := s.service.Upload(c.Context(), fileName, fileType, src)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFilename) {
			return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid filename")
		}
		sdklogger.Errorw("Upload failed", "filename", fileName, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "File uploaded successfully",
		"id":      record.ID,
		"length":  record.Length,
	})
}

func (s *Server) handleFetch(c *fiber.Ctx) error {
	filename := c.Params("filename")

	record, reader, err := s.service.Open(c.Context(), filename)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return s.sendJSONError(c, fiber.StatusNotFound, "File not found")
		}
		sdklogger.Errorw("Fetch failed", "filename", filename, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, fmt.Sprintf("Fetch failed: %v", err))
	}

	c.Set(fiber.HeaderContentType, record.ContentType)

	// Chunks are pulled lazily while fasthttp drains the stream writer,
	// so a consumer that stops reading stops the chunk reads too.
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() { _ = reader.Close() }()

		for {
			data, err := reader.Next(context.Background())
			if err == io.EOF {
				return
			}
			if err != nil {
				sdklogger.Warnw("Read stream aborted", "file_id", record.ID, "error", err.Error())
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.service.Delete(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return s.sendJSONError(c, fiber.StatusNotFound, "File not found")
		}
		sdklogger.Errorw("Delete failed", "file_id", id, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, fmt.Sprintf("Delete failed: %v", err))
	}

	return c.JSON(fiber.Map{
		"message": "File deleted",
		"id":      id,
	})
}
