package model

// Pagination describes which page of the catalog is loaded.
type Pagination struct {
	CurrentPage  int
	ItemsPerPage int
	TotalItems   int
}

// TotalPages is ceil(TotalItems / ItemsPerPage), zero for an empty catalog.
func (p Pagination) TotalPages() int {
	if p.ItemsPerPage <= 0 || p.TotalItems <= 0 {
		return 0
	}
	return (p.TotalItems + p.ItemsPerPage - 1) / p.ItemsPerPage
}

// Offset returns the server offset of the given 1-based page.
func (p Pagination) Offset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * p.ItemsPerPage
}
