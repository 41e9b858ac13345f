package books

import (
	"strconv"
	"strings"
	"time"
)

// Book represents a catalog entry. (name, author, publication_date) is
// unique.
type Book struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Author          string    `json:"author"`
	PublicationDate time.Time `json:"publication_date"`
	HardCover       bool      `json:"hard_cover"`
	Newsprint       bool      `json:"newsprint"`
	AddDate         time.Time `json:"add_date"`
}

// NewBook carries the fields accepted when creating an entry.
type NewBook struct {
	Name            string    `json:"name" validate:"required"`
	Author          string    `json:"author" validate:"required"`
	PublicationDate time.Time `json:"publication_date" validate:"required"`
	HardCover       bool      `json:"hard_cover"`
	Newsprint       bool      `json:"newsprint"`
}

// UpdateBook carries optional field changes.
type UpdateBook struct {
	Name            *string    `json:"name"`
	Author          *string    `json:"author"`
	PublicationDate *time.Time `json:"publication_date"`
	HardCover       *bool      `json:"hard_cover"`
	Newsprint       *bool      `json:"newsprint"`
}

// Actor identifies the authenticated caller for audit events.
type Actor struct {
	UserID int64
	RoleID int
}

// PageResult is the cached and returned page shape.
type PageResult struct {
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	Page        []Book `json:"page"`
}

// Sortable columns; anything else falls back to the default.
var sortColumns = map[string]string{
	"id":               "id",
	"name":             "name",
	"author":           "author",
	"publication_date": "publication_date",
	"add_date":         "add_date",
}

const (
	defaultSortBy    = "add_date"
	defaultSortOrder = "DESC"
	defaultLimit     = 10
)

// ListParams is the full filter/sort/pagination tuple for a listing query.
type ListParams struct {
	Page            int
	Limit           int
	Name            string
	Author          string
	PublicationYear int
	SortBy          string
	SortOrder       string
}

// Normalize applies defaults and restricts the sort direction to ASC/DESC
// (case-insensitive input).
func (p ListParams) Normalize() ListParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if _, ok := sortColumns[p.SortBy]; !ok {
		p.SortBy = defaultSortBy
	}
	switch strings.ToUpper(p.SortOrder) {
	case "ASC":
		p.SortOrder = "ASC"
	default:
		p.SortOrder = defaultSortOrder
	}
	return p
}

// CacheKey serializes the parameter tuple in a fixed canonical order. Absent
// optional filters keep their empty-string sentinel so two logically
// identical queries always build the identical key.
func (p ListParams) CacheKey() string {
	year := ""
	if p.PublicationYear != 0 {
		year = strconv.Itoa(p.PublicationYear)
	}
	return strings.Join([]string{
		"books",
		strconv.Itoa(p.Page),
		strconv.Itoa(p.Limit),
		p.Name,
		p.Author,
		year,
		p.SortBy,
		p.SortOrder,
	}, ":")
}
