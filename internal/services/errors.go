package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/taskwell/taskwell/pkg/errors"
)

var (
	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = apperrors.New("PROJECT_NOT_FOUND", "Project not found", http.StatusNotFound)
	// ErrMembershipNotFound indicates the requested membership does not exist.
	ErrMembershipNotFound = apperrors.New("MEMBERSHIP_NOT_FOUND", "Membership not found", http.StatusNotFound)
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "The user doesn't exist", http.StatusNotFound)

	// ErrNoRemainingAdmin rejects membership mutations that would leave the
	// project without an active admin.
	ErrNoRemainingAdmin = apperrors.New("NO_REMAINING_ADMIN",
		"The project must have an owner and at least one of the users must be an active admin",
		http.StatusBadRequest)
	// ErrCannotLeave rejects a leave request by the project owner or sole admin.
	ErrCannotLeave = apperrors.New("CANNOT_LEAVE_PROJECT",
		"You can't leave the project if you are the owner or there are no more admins",
		http.StatusForbidden)

	// ErrNoTransferInProgress indicates the project holds no outstanding transfer token.
	ErrNoTransferInProgress = apperrors.New("NO_TRANSFER_IN_PROGRESS", "The project has no transfer in progress", http.StatusBadRequest)
	// ErrUserMustBeMember rejects transfer candidates without an admin membership.
	ErrUserMustBeMember = apperrors.New("USER_MUST_BE_MEMBER", "The user must be an admin member of the project", http.StatusBadRequest)
	// ErrTokenInvalid covers malformed transfer tokens, bad signatures and
	// tokens presented by a user other than the one they name.
	ErrTokenInvalid = apperrors.New("TOKEN_INVALID", "Token is invalid", http.StatusBadRequest)
	// ErrTokenExpired indicates the transfer token fell outside its validity window.
	ErrTokenExpired = apperrors.New("TOKEN_EXPIRED", "Token has expired", http.StatusBadRequest)

	// ErrPointsNameDuplicated rejects duplicate estimation value names within a project.
	ErrPointsNameDuplicated = apperrors.New("POINTS_NAME_DUPLICATED", "Name duplicated for the project", http.StatusBadRequest)
	// ErrMembershipExists signals the user already belongs to the project.
	ErrMembershipExists = apperrors.New("MEMBERSHIP_EXISTS", "The user is already a project member", http.StatusConflict)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
