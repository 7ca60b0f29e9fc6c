// Package pagination reads page/limit query parameters for list endpoints.
package pagination

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type Page struct {
	Page  int
	Limit int
}

// FromQuery parses ?page and ?limit. Missing or invalid values fall back to
// page 1 and defaultLimit; limit is capped at maxLimit.
func FromQuery(c *fiber.Ctx, defaultLimit, maxLimit int) Page {
	return Parse(c.Query("page"), c.Query("limit"), defaultLimit, maxLimit)
}

func Parse(pageStr, limitStr string, defaultLimit, maxLimit int) Page {
	p := Page{Page: 1, Limit: defaultLimit}
	if n, err := strconv.Atoi(pageStr); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

func (p Page) Meta(total int64) Meta {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Meta{Total: total, Page: p.Page, Limit: p.Limit, Pages: pages}
}
