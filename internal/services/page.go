package services

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Pages int   `json:"pages"`
}

// pageCount is ceil(total/size).
func pageCount(total int64, size int) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// checkPage validates the request against the number of available pages.
// A request past the last page is an error, which includes page 1 of an
// empty result.
func checkPage(total int64, page, size int) (int, error) {
	if page < 1 {
		return 0, Validation("query.page", "page must be at least 1")
	}
	if size < 1 {
		return 0, Validation("query.size", "size must be at least 1")
	}
	pages := pageCount(total, size)
	if page > pages {
		return 0, Validation("query.page", "Page number is greater than possible.")
	}
	return pages, nil
}

func newPage[T any](items []T, total int64, page, size, pages int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: page, Size: size, Pages: pages}
}
