package vector

import "strings"

const (
	collectionPrefix = "nb"

	// maxCollectionLen is the shortest name limit across the supported
	// backends (Chroma caps collection names at 63 characters).
	maxCollectionLen = 63
)

// CollectionName derives the collection name for a notebook. The mapping is
// deterministic and sanitized to lowercase alphanumerics so it satisfies
// every supported backend's naming rules.
func CollectionName(notebookID string) string {
	var b strings.Builder
	b.WriteString(collectionPrefix)

	for _, r := range strings.ToLower(notebookID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
		if b.Len() >= maxCollectionLen {
			break
		}
	}

	return b.String()
}
