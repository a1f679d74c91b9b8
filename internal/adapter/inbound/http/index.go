package http_handler

import (
	"bytes"
	"html/template"

	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"

	"github.com/khanhng-dev/gridstore/internal/domain"
)

// indexTemplate renders the stored-file listing, with a flagged empty
// state when nothing has been uploaded yet.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>gridstore</title></head>
<body>
<h1>Stored files</h1>
{{if .Files}}
<table border="1" cellpadding="4">
<tr><th>ID</th><th>Filename</th><th>Content type</th><th>Size</th><th>Status</th><th>Created</th></tr>
{{range .Files}}
<tr>
<td>{{.ID}}</td>
<td><a href="/files/{{.Filename}}">{{.Filename}}</a></td>
<td>{{.ContentType}}</td>
<td>{{.Length}}</td>
<td>{{.Status}}</td>
<td>{{.CreatedAt.Format "2006-01-02 15:04:05"}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No files uploaded yet.</p>
{{end}}
</body>
</html>
`))

func (s *Server) handleIndex(c *fiber.Ctx) error {
	records, err := s.service.List(c.Context())
	if err != nil {
		sdklogger.Errorw("Index listing failed", "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, "Error retrieving files")
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, struct {
		Files []*domain.FileRecord
	}{Files: records}); err != nil {
		return s.sendJSONError(c, fiber.StatusInternalServerError, "Error rendering page")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}
