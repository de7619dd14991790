package service

import (
	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
)

// MsgNotOwner is returned when a caller tries to change a record they
// neither own nor administer.
const MsgNotOwner = "Forbidden: You can only modify your own content"

// CanModify is the single ownership rule for every mutating Blog, Comment
// and User operation: the owner or an admin may proceed.
func CanModify(caller auth.Identity, ownerID int64) bool {
	if caller.ID == 0 {
		return false
	}
	return caller.ID == ownerID || caller.IsAdmin()
}

// checkOwner turns a failed CanModify into a Forbidden error.
func checkOwner(caller auth.Identity, ownerID int64) error {
	if !CanModify(caller, ownerID) {
		return apperror.Forbidden(MsgNotOwner)
	}
	return nil
}
