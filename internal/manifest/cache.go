package manifest

// Scope identifies which slice of the project a manifest scan covered.
type Scope string

const (
	// ScopeAll covers every indexed asset.
	ScopeAll Scope = "all"

	// ScopeAssets covers only the mutable assets folder.
	ScopeAssets Scope = "assets"
)

// Cache memoizes manifest scan results per scope. Scans stat and parse every
// asset, so repeating one without an intervening import event is wasted work.
// The cache is owned by a reconciliation session and must be invalidated
// whenever the host reports any import, move, or delete. All access happens
// on the session's designated thread.
type Cache struct {
	entries map[Scope][]*References
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Scope][]*References)}
}

// Get returns the cached scan for scope, if present.
func (c *Cache) Get(scope Scope) ([]*References, bool) {
	refs, ok := c.entries[scope]
	return refs, ok
}

// Put stores a scan result for scope.
func (c *Cache) Put(scope Scope, refs []*References) {
	c.entries[scope] = refs
}

// Invalidate drops every cached scan.
func (c *Cache) Invalidate() {
	c.entries = make(map[Scope][]*References)
}
