package store

import "codeberg.org/mutker/envsim/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")
	ErrInvalidDriver = errors.ErrInvalidDriver

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("store_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("store_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("store_schema_migration_failed")

	// Storage Errors
	ErrStorageAccess     = errors.ErrorCode("store_access_failed")
	ErrTransactionFailed = errors.ErrorCode("store_transaction_failed")
	ErrStorageInit       = errors.ErrorCode("store_init_failed")
	ErrStorageClose      = errors.ErrorCode("store_close_failed")
	ErrDuplicateReading  = errors.ErrorCode("store_duplicate_reading")
)

// IsStorageError reports whether err originated in the store.
func IsStorageError(err error) bool {
	for _, code := range []errors.ErrorCode{
		ErrStorageAccess, ErrTransactionFailed, ErrStorageInit, ErrStorageClose,
		ErrDuplicateReading, ErrSchemaInitFailed, ErrSchemaValidationFailed, ErrSchemaMigrationFailed,
	} {
		if errors.HasCode(err, code) {
			return true
		}
	}
	return false
}
