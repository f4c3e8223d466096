package handler

import (
	"net/http"
	"shop-service/internal/model"
	"shop-service/internal/service"
	"shop-service/pkg/logger"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProductHandler serves the catalog endpoints
type ProductHandler struct {
	catalog *service.CatalogService
}

// NewProductHandler creates a product handler
func NewProductHandler(catalog *service.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

type productPageResponse struct {
	Count    int64           `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []model.Product `json:"results"`
}

// ListProducts handles listing products with search, filters, ordering and
// pagination. With query_all the whole filtered list is returned unpaginated.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	log := logger.FromContext(c)

	q := service.ProductQuery{
		Search:   c.QueryParam("search"),
		Ordering: c.QueryParam("ordering"),
		MinPrice: c.QueryParam("min_price"),
		MaxPrice: c.QueryParam("max_price"),
		Brand:    c.QueryParam("brand"),
		Category: c.QueryParam("type"),
	}

	if _, all := c.QueryParams()["query_all"]; all {
		products, err := h.catalog.List(c.Request().Context(), q)
		if err != nil {
			return respondError(c, err)
		}
		if products == nil {
			products = []model.Product{}
		}
		log.Info("Products retrieved", zap.Int("count", len(products)))
		return c.JSON(http.StatusOK, products)
	}

	page, err := h.catalog.ListPage(c.Request().Context(), q, c.QueryParam("page"), c.QueryParam("pageSize"))
	if err != nil {
		return respondError(c, err)
	}

	resp := productPageResponse{
		Count:   page.Count,
		Results: page.Results,
	}
	if resp.Results == nil {
		resp.Results = []model.Product{}
	}
	if page.HasNext() {
		next := pageURL(c, page.Page+1)
		resp.Next = &next
	}
	if page.HasPrevious() {
		prev := pageURL(c, page.Page-1)
		resp.Previous = &prev
	}

	log.Info("Products retrieved",
		zap.Int64("count", page.Count),
		zap.Int("page", page.Page),
		zap.Int("page_size", page.PageSize))
	return c.JSON(http.StatusOK, resp)
}

// pageURL rebuilds the request URL pointing at another page. The first page
// carries no page parameter.
func pageURL(c echo.Context, page int) string {
	u := *c.Request().URL
	query := u.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = query.Encode()
	u.Scheme = c.Scheme()
	u.Host = c.Request().Host
	return u.String()
}

// GetProduct handles retrieving a single product by ID
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	product, err := h.catalog.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	logger.FromContext(c).Info("Product retrieved", zap.Uint("product_id", id))
	return c.JSON(http.StatusOK, product)
}

// CreateProduct handles creating a new product
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req service.ProductInput
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	product, err := h.catalog.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles PUT and PATCH. Both apply only the supplied fields.
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req service.ProductInput
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	product, err := h.catalog.Update(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, product)
}

// DeleteProduct handles deleting a product that no order references
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.catalog.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
