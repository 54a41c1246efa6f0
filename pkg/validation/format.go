// Package validation provides common validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/end-of-trade/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return fmt.Errorf("expected output format of %s or %s, got %q",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// ValidateStoreDriver checks that driver names a supported record store.
func ValidateStoreDriver(driver string) error {
	if driver != constants.StoreDriverMemory && driver != constants.StoreDriverSQLite {
		return fmt.Errorf("expected store driver of %s or %s, got %q",
			constants.StoreDriverMemory, constants.StoreDriverSQLite, driver)
	}
	return nil
}
