package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/social-feed/social-feed/internal/middleware"
	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/logger"
)

// StaticImagesPath is where image blobs are served from when the local
// storage backend is in use.
const StaticImagesPath = "/static/images"

type ImageHandler struct {
	imageService *services.ImageService
	social       *SocialHandler
	baseURL      string
	logger       *logger.Logger
}

func NewImageHandler(imageService *services.ImageService, social *SocialHandler, baseURL string, logger *logger.Logger) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		social:       social,
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
	}
}

// imageView is an image row plus the public URL of its blob.
type imageView struct {
	*models.Image
	Filepath string `json:"filepath"`
}

func (h *ImageHandler) view(img *models.Image) imageView {
	return imageView{Image: img, Filepath: h.baseURL + StaticImagesPath + "/" + img.Name}
}

func (h *ImageHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	images := r.Group("/image", auth)
	{
		images.POST("/upload", h.Upload)
		images.POST("/uploadfiles", h.UploadMany)
		images.GET("/get-all", h.ListOwn)
		images.DELETE("/image/:image_id", h.Delete)
		images.GET("/download/:image_id", h.Download)
		images.GET("/:image_id", h.Get)

		h.social.RegisterTargetRoutes(images, models.TargetImage)
	}
}

func (h *ImageHandler) Upload(c *gin.Context) {
	uploads, closeUploads, err := formUploads(c, "file")
	if err != nil {
		uploadError(c, "file", err)
		return
	}
	defer closeUploads()
	if len(uploads) != 1 {
		abortWithDetail(c, http.StatusUnprocessableEntity, ErrorDetail{
			Loc:  []string{"body", "file"},
			Msg:  "exactly one file is required",
			Type: "value_error",
		})
		return
	}

	image, err := h.imageService.Upload(c.Request.Context(), middleware.GetUserID(c), uploads[0])
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(image))
}

func (h *ImageHandler) UploadMany(c *gin.Context) {
	uploads, closeUploads, err := formUploads(c, "files")
	if err != nil {
		uploadError(c, "files", err)
		return
	}
	defer closeUploads()

	images, err := h.imageService.UploadMany(c.Request.Context(), middleware.GetUserID(c), uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	views := make([]imageView, 0, len(images))
	for _, img := range images {
		views = append(views, h.view(img))
	}
	c.JSON(http.StatusCreated, gin.H{"images": views})
}

func (h *ImageHandler) ListOwn(c *gin.Context) {
	images, err := h.imageService.ListByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	views := make([]imageView, 0, len(images))
	for _, img := range images {
		views = append(views, h.view(img))
	}
	c.JSON(http.StatusOK, gin.H{"images": views})
}

func (h *ImageHandler) Get(c *gin.Context) {
	imageID, ok := pathID(c, "image_id")
	if !ok {
		return
	}

	image, err := h.imageService.Get(c.Request.Context(), imageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.view(image))
}

// Download streams the blob as an attachment named after the stored file.
func (h *ImageHandler) Download(c *gin.Context) {
	imageID, ok := pathID(c, "image_id")
	if !ok {
		return
	}

	image, rc, err := h.imageService.Open(c.Request.Context(), imageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if ext := strings.ToLower(image.Name[strings.LastIndexByte(image.Name, '.')+1:]); ext == "png" {
		contentType = "image/png"
	} else if ext == "jpg" || ext == "jpeg" {
		contentType = "image/jpeg"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + image.Name + `"`,
	})
}

func (h *ImageHandler) Delete(c *gin.Context) {
	imageID, ok := pathID(c, "image_id")
	if !ok {
		return
	}

	if err := h.imageService.Delete(c.Request.Context(), middleware.GetUserID(c), imageID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Image has been deleted."})
}
