package remotesync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// MaxPageSize caps the number of items requested per page.
const MaxPageSize = 100

// maxPages bounds a listing whose next links never run out.
const maxPages = 10000

// fetchPage fetches one page and returns its items and the next page URL, or
// "" on the last page.
type fetchPage[T any] func(ctx context.Context, pageURL string) ([]T, string, error)

// paginate follows next links sequentially, starting at first. The listing
// is either complete or an error: a repeated next link or more than maxPages
// pages fail the whole listing.
func paginate[T any](ctx context.Context, first string, fetch fetchPage[T]) ([]T, error) {
	var (
		all  []T
		next = first
		seen = map[string]struct{}{}
	)
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("pagination: more than %d pages", maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("pagination: next link %q repeated", next)
		}
		seen[next] = struct{}{}

		items, following, err := fetch(ctx, next)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		next = strings.TrimSpace(following)
	}
	return all, nil
}

// nextLink returns the rel="next" target of an RFC 5988 Link header.
func nextLink(header http.Header) string {
	for _, value := range header.Values("Link") {
		for _, part := range strings.Split(value, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.TrimSpace(segments[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range segments[1:] {
				key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || strings.TrimSpace(key) != "rel" {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
					if rel == "next" {
						return strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
					}
				}
			}
		}
	}
	return ""
}
