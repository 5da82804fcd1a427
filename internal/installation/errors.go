package installation

import "errors"

// Installation errors.
var (
	ErrInstallationNotFound = errors.New("installation not found")
	ErrAlreadyClosed        = errors.New("installation is already closed")
	ErrMountTypeRequired    = errors.New("mount type is required to close an installation")
	ErrInvalidMountType     = errors.New("invalid mount type")
	ErrPhotoRequired        = errors.New("at least one photo is required to close an installation")
	ErrNothingToUpdate      = errors.New("no fields to update")
	ErrNoAssignees          = errors.New("at least one assignee is required")
)
