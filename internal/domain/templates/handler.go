package templates

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

// Handler exposes the template engine over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the template endpoints on the given group
// (typically /api/v1).
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/templates", h.create)
	g.GET("/templates", h.list)
	g.GET("/templates/:id", h.get)
	g.GET("/templates/:id/pdf", h.getPDF)
	g.PUT("/templates/:id", h.update)
	g.DELETE("/templates/:id", h.remove)
	g.POST("/templates/:id/duplicate", h.duplicate)
	g.PUT("/templates/:id/fields", h.saveFields)
	g.GET("/templates/:id/fields", h.getFields)
	g.POST("/templates/:id/generate", h.generate)
	g.POST("/images", h.ingestImage)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid template id")
	}
	return id, nil
}

// mapError converts service sentinels into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, pdfform.ErrInvalidDocument),
		errors.Is(err, pdfform.ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrMissingFile):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}

func (h *Handler) create(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file upload")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file upload")
	}

	params := CreateParams{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		CreatedBy:   c.FormValue("created_by"),
	}
	if params.Name == "" {
		params.Name = file.Filename
	}

	t, err := h.svc.Create(c.Request().Context(), params, data)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) list(c echo.Context) error {
	includeInactive := c.QueryParam("include_inactive") == "1" ||
		c.QueryParam("include_inactive") == "true"
	summaries, err := h.svc.List(c.Request().Context(), includeInactive)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (h *Handler) get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) getPDF(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, err := h.svc.GetPDF(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.Blob(http.StatusOK, "application/pdf", data)
}

func (h *Handler) update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var params UpdateParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.Update(c.Request().Context(), id, params)
	if err != nil {
		return mapError(err)
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) remove(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ok, err := h.svc.SoftDelete(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) duplicate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		CreatedBy string `json:"created_by"`
	}
	// Body is optional; a bare POST duplicates under the original owner.
	_ = c.Bind(&body)

	t, err := h.svc.Duplicate(c.Request().Context(), id, body.CreatedBy)
	if err != nil {
		return mapError(err)
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) saveFields(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Fields []pdfform.Field `json:"fields"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ok, err := h.svc.SaveFields(c.Request().Context(), id, body.Fields)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return c.JSON(http.StatusOK, map[string]int{"saved": len(body.Fields)})
}

func (h *Handler) getFields(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	fields, err := h.svc.GetFields(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, fields)
}

func (h *Handler) generate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		FormData map[string]any `json:"form_data"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Render(c.Request().Context(), id, body.FormData)
	if err != nil {
		return mapError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="document.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", out)
}

func (h *Handler) ingestImage(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file upload")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file upload")
	}

	dataURL, err := h.svc.IngestImage(data)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"data_url": dataURL})
}
