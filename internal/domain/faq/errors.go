package faq

// Error codes carried by apperrors.AppError.
const (
	CodeInvalidInput      = "invalid_input"
	CodeProviderError     = "provider_error"
	CodeDimensionMismatch = "dimension_mismatch"
	CodeCatalogIntegrity  = "catalog_integrity"
)
