package lock

// deleteIfEmpty removes key from m when its inner map has no entries left.
func deleteIfEmpty[K comparable, IK comparable, V any](m map[K]map[IK]V, key K) {
	if inner, ok := m[key]; ok && len(inner) == 0 {
		delete(m, key)
	}
}
