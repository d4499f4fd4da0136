// ABOUTME: Order-preserving deduplication used to merge fan-out search results.
// ABOUTME: Results are concatenated in request order and the first occurrence of each key wins.
package research

// MergeUnique concatenates sets in the order given and keeps the first item for each key.
// Items whose key is empty are dropped.
func MergeUnique[T any](key func(T) string, sets ...[]T) []T {
	seen := make(map[string]bool)
	var out []T
	for _, set := range sets {
		for _, item := range set {
			k := key(item)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, item)
		}
	}
	return out
}

func docURL(d Doc) string { return d.URL }
