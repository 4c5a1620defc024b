package services

import (
	"errors"

	"bookshelf/internal/common"
	"bookshelf/internal/repositories"
)

// Client-facing messages.
const (
	msgCredentialsRequired = "Email and password are required"
	msgPasswordTooShort    = "Password must be at least 8 characters"
	msgPasswordTooLong     = "Password must be at most 72 bytes"
	msgEmailTaken          = "An account with this email already exists"
	msgInvalidCredentials  = "Invalid credentials"
	msgBookFieldsRequired  = "ol_key and title are required"
	msgBookKeyTaken        = "A book with this key already exists"
	msgDocsRequired        = "docs array is required"
	msgCatalogFailed       = "Catalog search failed"
)

// fromRepo converts repository sentinels into AppErrors. Anything unexpected becomes internal.
func fromRepo(err error, conflictMsg string) error {
	switch {
	case errors.Is(err, repositories.ErrRecordNotFound):
		return common.NewNotFoundError()
	case errors.Is(err, repositories.ErrDuplicateKey) && conflictMsg != "":
		return common.NewConflictError(conflictMsg)
	default:
		return common.NewInternalError(err)
	}
}
