package cache

import "strings"

// DefaultNamespace prefixes every restaurant key.
const DefaultNamespace = "restaurant"

// CacheKey identifies a cached restaurant record.
type CacheKey struct {
	// Namespace separates deployments sharing one Redis (default "restaurant").
	Namespace string

	// Name is the restaurant name, the primary key of the record store.
	Name string
}

// String generates the Redis key.
// Format: namespace:name
//
// Example:
//
//	restaurant:Pasta House
func (k CacheKey) String() string {
	ns := strings.Trim(k.Namespace, ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + ":" + k.Name
}
