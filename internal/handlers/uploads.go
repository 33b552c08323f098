package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/social-feed/social-feed/internal/services"
)

// formUploads opens every file sent under field. Requests that are not
// multipart simply carry no files. The returned func closes them all.
func formUploads(c *gin.Context, field string) ([]services.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		return nil, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, err
	}

	headers := form.File[field]
	uploads := make([]services.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, err
		}
		files = append(files, f)
		uploads = append(uploads, services.Upload{Filename: fh.Filename, Size: fh.Size, Reader: f})
	}
	return uploads, closeAll, nil
}

func uploadError(c *gin.Context, field string, err error) {
	abortWithDetail(c, http.StatusUnprocessableEntity, ErrorDetail{
		Loc:  []string{"body", field},
		Msg:  err.Error(),
		Type: "value_error",
	})
}
