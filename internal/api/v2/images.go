package api

import (
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/trailcam-go/internal/api/v2/dto"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/ingest"
	"github.com/tphakala/trailcam-go/internal/logger"
)

func (c *Controller) initImageRoutes() {
	images := c.Group.Group("/images")
	images.POST("", c.UploadImage, c.uploadLimiters...)
	images.GET("", c.ListImages)
	images.GET("/:id", c.GetImage)
	images.GET("/:id/prediction", c.GetImagePrediction)
	images.POST("/:id/classify", c.ClassifyImage, c.uploadLimiters...)
}

// UploadImage handles POST /images: stores the file, classifies it and
// returns the stored prediction.
func (c *Controller) UploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile(UploadField)
	if err != nil {
		return c.HandleError(ctx, err, "Multipart field \""+UploadField+"\" is required",
			http.StatusBadRequest, ingest.InvalidRequest)
	}

	f, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest, ingest.InvalidRequest)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			c.log.Debug("failed to close upload", logger.Error(cerr))
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest, ingest.InvalidRequest)
	}

	rec, err := c.ingestor.Ingest(ctx.Request().Context(), ingest.Upload{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
	})
	if err != nil {
		return c.handlePipelineError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, dto.NewPredictionResponse(rec))
}

// ListImages handles GET /images.
func (c *Controller) ListImages(ctx echo.Context) error {
	metas, err := c.querier.ListImages(ctx.Request().Context())
	if err != nil {
		return c.handleQueryError(ctx, err, "Image not found")
	}
	return ctx.JSON(http.StatusOK, dto.NewImageList(metas))
}

// GetImage handles GET /images/:id, returning the stored bytes unchanged.
func (c *Controller) GetImage(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.invalidID(ctx)
	}

	img, err := c.querier.GetImage(ctx.Request().Context(), id)
	if err != nil {
		return c.handleQueryError(ctx, err, "Image not found")
	}

	if img.Name != "" {
		if cd := mime.FormatMediaType("inline", map[string]string{"filename": img.Name}); cd != "" {
			ctx.Response().Header().Set(echo.HeaderContentDisposition, cd)
		}
	}
	return ctx.Blob(http.StatusOK, img.ContentType, img.Data)
}

// GetImagePrediction handles GET /images/:id/prediction.
func (c *Controller) GetImagePrediction(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.invalidID(ctx)
	}

	rec, err := c.querier.GetPredictionForImage(ctx.Request().Context(), id)
	if err != nil {
		return c.handleQueryError(ctx, err, "Prediction not found")
	}
	return ctx.JSON(http.StatusOK, dto.NewPredictionResponse(rec))
}

// ClassifyImage handles POST /images/:id/classify for images whose
// classification failed earlier.
func (c *Controller) ClassifyImage(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.invalidID(ctx)
	}

	rec, err := c.ingestor.Reclassify(ctx.Request().Context(), id)
	if err != nil {
		return c.handlePipelineError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, dto.NewPredictionResponse(rec))
}

func (c *Controller) invalidID(ctx echo.Context) error {
	return c.HandleError(ctx, errors.NewStd("id must be a positive integer"), "Invalid id",
		http.StatusBadRequest, ingest.InvalidRequest)
}
