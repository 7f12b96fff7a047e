package errors

// Error codes used with the UnifiedError builder.
const (
	// Lookups
	CodeProviderNotFound      = "PROVIDER_NOT_FOUND"
	CodeSSNNotFound           = "SSN_NOT_FOUND"
	CodeLicenseNotFound       = "LICENSE_NOT_FOUND"
	CodePrivilegeNotFound     = "PRIVILEGE_NOT_FOUND"
	CodeAdverseActionNotFound = "ADVERSE_ACTION_NOT_FOUND"
	CodeJurisdictionNotFound  = "JURISDICTION_CONFIG_NOT_FOUND"

	// Caller input
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidPagination = "INVALID_PAGINATION"
	CodeInvalidLastKey    = "INVALID_LAST_KEY"
	CodeInvalidPurchase   = "INVALID_PURCHASE"
	CodeInvalidEvent      = "INVALID_EVENT"
	CodeAlreadyLifted     = "ADVERSE_ACTION_ALREADY_LIFTED"
	CodePrivilegeInactive = "PRIVILEGE_ALREADY_INACTIVE"
	CodeInvalidConfig     = "INVALID_CONFIG"

	// Stored data
	CodeDataIntegrity = "DATA_INTEGRITY"
	CodeSerialization = "SERIALIZATION_FAILED"

	// Upstream
	CodeStorageFailure     = "STORAGE_FAILURE"
	CodeTransactionFailed  = "TRANSACTION_FAILED"
	CodeEmailSendFailed    = "EMAIL_SEND_FAILED"
	CodeEmailNoRecipients  = "EMAIL_NO_RECIPIENTS"
	CodeEventPublishFailed = "EVENT_PUBLISH_FAILED"
	CodePresignFailed      = "PRESIGN_FAILED"
)
