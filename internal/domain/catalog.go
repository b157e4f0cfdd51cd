package domain

// SystemSchemas are the reserved schemas that never take part in a backup.
var SystemSchemas = []string{
	"information_schema",
	"performance_schema",
	"mysql",
	"sys",
}

func IsSystemSchema(name string) bool {
	for _, s := range SystemSchemas {
		if s == name {
			return true
		}
	}
	return false
}

// CatalogEntry is one user database as listed by the server. Index is
// 1-based and only stable for the listing it came from.
type CatalogEntry struct {
	Index int
	Name  string
}

type Catalog []CatalogEntry

// NewCatalog drops system schemas from names and numbers the rest in the
// order the server returned them.
func NewCatalog(names []string) Catalog {
	catalog := make(Catalog, 0, len(names))
	for _, name := range names {
		if IsSystemSchema(name) {
			continue
		}
		catalog = append(catalog, CatalogEntry{Index: len(catalog) + 1, Name: name})
	}
	return catalog
}

func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, entry := range c {
		names[i] = entry.Name
	}
	return names
}

// Contains reports whether name is in the catalog. The match is exact and
// case-sensitive.
func (c Catalog) Contains(name string) bool {
	for _, entry := range c {
		if entry.Name == name {
			return true
		}
	}
	return false
}

// SelectionSet is an ordered list of unique database names picked from one
// Catalog.
type SelectionSet []string
