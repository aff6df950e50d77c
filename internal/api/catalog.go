package api

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxPageSize = 100

// productFilter reads the catalog query string
func productFilter(c *gin.Context) (store.ProductFilter, error) {
	f := store.ProductFilter{
		Search: strings.TrimSpace(c.Query("q")),
		Sort:   c.DefaultQuery("sort", store.SortPopular),
	}

	for _, raw := range c.QueryArray("category") {
		for _, cat := range strings.Split(raw, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				f.Categories = append(f.Categories, cat)
			}
		}
	}

	for name, dst := range map[string]**decimal.Decimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, err
		}
		*dst = &d
	}

	var err error
	if raw := c.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil {
			return f, err
		}
		if f.Limit > maxPageSize {
			f.Limit = maxPageSize
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if f.Offset, err = strconv.Atoi(raw); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (h *Handler) listProducts(c *gin.Context) {
	f, err := productFilter(c)
	if err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	products, err := h.svc.Catalog.ListProducts(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product":  detail,
		"in_stock": detail.InStock(),
	})
}

func (h *Handler) listReviews(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	reviews, err := h.svc.Reviews.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := h.svc.Reviews.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "summary": summary})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.svc.Catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
