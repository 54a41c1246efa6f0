// Package constants provides shared constants for the end-of-trade application.
package constants

// DateLayout is the calendar date format used for trading dates in URLs,
// config files and output.
const DateLayout = "2006-01-02"

// Currency constants
const (
	// DecimalPlaces is the number of minor-unit digits kept for money.
	DecimalPlaces = 2

	// CentsPerDollar is the number of minor units in one dollar.
	CentsPerDollar = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent).
	CurrencyTolerance = "0.01"
)

// Float targets
const (
	// DefaultTillTarget is the default till float value.
	DefaultTillTarget = "500.00"

	// DefaultSafeTarget is the default safe float value.
	DefaultSafeTarget = "1500.00"

	// DefaultVarianceWarning is the absolute variance above which settlement
	// is flagged for review.
	DefaultVarianceWarning = "100.00"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Store drivers
const (
	// StoreDriverMemory keeps records in process memory.
	StoreDriverMemory = "memory"

	// StoreDriverSQLite persists records to a SQLite database file.
	StoreDriverSQLite = "sqlite"

	// DefaultSQLitePath is the default database file for the sqlite driver.
	DefaultSQLitePath = "end-of-trade.db"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment overrides of config keys.
	EnvPrefix = "END_OF_TRADE"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (64 KB)
	DefaultMaxBodySizeBytes int64 = 64 * 1024

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)
