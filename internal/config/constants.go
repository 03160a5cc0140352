package config

// Default paths
const (
	// DefaultDatabasePath is the default path for the library database
	DefaultDatabasePath = "./bookexport.db"

	// DefaultOutputPath is the default path for the JSON export
	DefaultOutputPath = "./library.json"
)
