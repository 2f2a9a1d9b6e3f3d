package ports

// ConfigParser parses raw configuration bytes into a generic map, so that
// overrides can be merged before the map is decoded into a typed config.
type ConfigParser interface {
	// Parse unmarshals data into a map keyed by the config's JSON field names.
	Parse(data []byte) (map[string]any, error)
}
