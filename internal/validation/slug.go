package validation

// reservedPostSlugs are tokens that collide with fixed API routes under
// /api/posts/. A derived slug equal to one of these would shadow the route,
// so slug allocation treats them as taken.
var reservedPostSlugs = map[string]struct{}{
	"search": {},
	"image":  {},
	"new":    {},
}

// IsReservedPostSlug reports whether slug may never be assigned to a post.
// Besides the fixed route words, slugs of only digits are reserved: the
// detail endpoint dispatches all-digit identifiers as IDs, so a numeric slug
// would be unreachable. Allocation walks to a suffixed form instead, which
// carries a hyphen and dispatches as a slug.
func IsReservedPostSlug(slug string) bool {
	if _, reserved := reservedPostSlugs[slug]; reserved {
		return true
	}
	if slug == "" {
		return false
	}
	for _, r := range slug {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
