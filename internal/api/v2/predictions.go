package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/trailcam-go/internal/api/v2/dto"
)

func (c *Controller) initPredictionRoutes() {
	predictions := c.Group.Group("/predictions")
	predictions.GET("", c.ListPredictions)
	predictions.GET("/:id", c.GetPrediction)
}

// ListPredictions handles GET /predictions.
func (c *Controller) ListPredictions(ctx echo.Context) error {
	recs, err := c.querier.ListPredictions(ctx.Request().Context())
	if err != nil {
		return c.handleQueryError(ctx, err, "Prediction not found")
	}
	return ctx.JSON(http.StatusOK, dto.NewPredictionList(recs))
}

// GetPrediction handles GET /predictions/:id.
func (c *Controller) GetPrediction(ctx echo.Context) error {
	id, ok := parseID(ctx, "id")
	if !ok {
		return c.invalidID(ctx)
	}

	rec, err := c.querier.GetPrediction(ctx.Request().Context(), id)
	if err != nil {
		return c.handleQueryError(ctx, err, "Prediction not found")
	}
	return ctx.JSON(http.StatusOK, dto.NewPredictionResponse(rec))
}
