package guard

// FilterFactory creates a new instance of a filter.
type FilterFactory func() Filter

// filterRegistry is the global registry of filter factories.
var filterRegistry = map[string]FilterFactory{}

// RegisterFactory registers a filter factory by name.
func RegisterFactory(name string, factory FilterFactory) {
	filterRegistry[name] = factory
}

// GetFactory returns a filter factory by name.
func GetFactory(name string) (FilterFactory, bool) {
	f, ok := filterRegistry[name]
	return f, ok
}

// RegisteredFilters returns the names of all registered filter factories.
func RegisteredFilters() []string {
	names := make([]string, 0, len(filterRegistry))
	for name := range filterRegistry {
		names = append(names, name)
	}
	return names
}
