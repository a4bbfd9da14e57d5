package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/models"
	apperrors "github.com/taskwell/taskwell/pkg/errors"
	"github.com/taskwell/taskwell/pkg/logger"
	"github.com/taskwell/taskwell/pkg/mail"
)

// TransferService drives the project ownership transfer workflow: a member
// requests ownership, the owner starts a transfer by minting a token for a
// candidate, and the candidate accepts or rejects with that token.
type TransferService struct {
	db           *gorm.DB
	signer       *auth.TransferSigner
	quota        *QuotaChecker
	mailer       mail.Mailer
	auditService *AuditService
	log          *zap.Logger
}

// NewTransferService constructs a TransferService instance.
func NewTransferService(db *gorm.DB, signer *auth.TransferSigner, quota *QuotaChecker, mailer mail.Mailer, auditService *AuditService) (*TransferService, error) {
	if db == nil {
		return nil, errors.New("transfer service: db is required")
	}
	if signer == nil {
		return nil, errors.New("transfer service: signer is required")
	}
	if quota == nil {
		return nil, errors.New("transfer service: quota checker is required")
	}
	return &TransferService{
		db:           db,
		signer:       signer,
		quota:        quota,
		mailer:       mailer,
		auditService: auditService,
		log:          logger.WithModule("transfer"),
	}, nil
}

// Request lets an admin member ask the current owner to hand the project
// over. No token is minted; the owner is notified by mail.
func (s *TransferService) Request(ctx context.Context, projectID, requesterID string) error {
	ctx = ensureContext(ctx)

	var project models.Project
	if err := s.db.WithContext(ctx).Preload("Owner").
		First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("transfer service: load project: %w", err)
	}

	membership, err := s.loadMembership(ctx, s.db.WithContext(ctx), projectID, requesterID)
	if err != nil {
		return err
	}
	if membership == nil || !membership.IsAdmin {
		return apperrors.ErrForbidden
	}

	requester, err := s.loadUser(ctx, s.db.WithContext(ctx), requesterID)
	if err != nil {
		return err
	}

	if project.Owner != nil {
		s.sendMail(ctx, mail.Message{
			To:      []string{project.Owner.Email},
			Subject: fmt.Sprintf("[%s] Ownership requested", project.Name),
			Body: fmt.Sprintf("%s has requested ownership of the project %q. "+
				"Start a transfer from the project settings to hand it over.",
				requester.Username, project.Name),
		})
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &requester.ID,
		Action:   "transfer.request",
		Resource: project.ID,
		Result:   "success",
	})

	return nil
}

// Start lets the owner begin a transfer towards a candidate. The candidate
// must hold an admin membership, since only admin members may redeem the
// token. A timestamped token bound to the candidate is stored on the
// project, replacing any earlier one, and mailed to the candidate.
func (s *TransferService) Start(ctx context.Context, projectID, requesterID, candidateID string) error {
	ctx = ensureContext(ctx)

	var candidate models.User
	var project models.Project

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("transfer service: load project: %w", err)
		}

		if project.OwnerID != requesterID {
			return apperrors.ErrForbidden
		}

		if err := tx.First(&candidate, "id = ?", candidateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("transfer service: load candidate: %w", err)
		}

		membership, err := s.loadMembership(ctx, tx, projectID, candidateID)
		if err != nil {
			return err
		}
		if membership == nil || !membership.IsAdmin {
			return ErrUserMustBeMember
		}

		token, err := s.signer.Sign(candidate.ID)
		if err != nil {
			return fmt.Errorf("transfer service: sign token: %w", err)
		}

		if err := tx.Model(&project).Update("transfer_token", token).Error; err != nil {
			return fmt.Errorf("transfer service: store token: %w", err)
		}
		project.TransferToken = &token
		return nil
	})
	if err != nil {
		return err
	}

	s.sendMail(ctx, mail.Message{
		To:      []string{candidate.Email},
		Subject: fmt.Sprintf("[%s] Ownership transfer offered", project.Name),
		Body: fmt.Sprintf("You have been offered ownership of the project %q. "+
			"Use this token to accept or reject the transfer: %s",
			project.Name, *project.TransferToken),
	})

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &requesterID,
		Action:   "transfer.start",
		Resource: project.ID,
		Result:   "success",
		Metadata: map[string]any{"candidate_id": candidate.ID},
	})

	return nil
}

// Accept completes a transfer: the candidate presents the token, quotas for
// the prospective owner are re-validated, and on success ownership moves
// and the token is cleared. On any failure owner and token stay untouched.
func (s *TransferService) Accept(ctx context.Context, projectID, requesterID, token string) error {
	ctx = ensureContext(ctx)

	var project models.Project
	var previousOwner models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validateTransfer(ctx, tx, &project, projectID, requesterID, token); err != nil {
			return err
		}

		// Quota re-checks read through the transaction so the counts and
		// the owner reassignment commit against the same snapshot.
		requester, err := s.loadUser(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		quota := s.quota.WithTx(tx)
		if err := quota.CheckProjectOwnership(ctx, requester, project.IsPrivate, project.ID); err != nil {
			return err
		}
		if err := quota.CheckProjectMemberships(ctx, requester, &project); err != nil {
			return err
		}

		if err := tx.First(&previousOwner, "id = ?", project.OwnerID).Error; err != nil {
			return fmt.Errorf("transfer service: load previous owner: %w", err)
		}

		updates := map[string]any{
			"owner_id":       requesterID,
			"transfer_token": nil,
		}
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return fmt.Errorf("transfer service: reassign owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.sendMail(ctx, mail.Message{
		To:      []string{previousOwner.Email},
		Subject: fmt.Sprintf("[%s] Ownership transfer accepted", project.Name),
		Body:    fmt.Sprintf("The ownership transfer of the project %q has been accepted.", project.Name),
	})

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &requesterID,
		Action:   "transfer.accept",
		Resource: project.ID,
		Result:   "success",
		Metadata: map[string]any{"previous_owner_id": previousOwner.ID},
	})

	return nil
}

// Reject cancels an outstanding transfer: token verification runs exactly
// as for Accept, then the token is cleared and the owner notified.
func (s *TransferService) Reject(ctx context.Context, projectID, requesterID, token string) error {
	ctx = ensureContext(ctx)

	var project models.Project
	var owner models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validateTransfer(ctx, tx, &project, projectID, requesterID, token); err != nil {
			return err
		}

		if err := tx.First(&owner, "id = ?", project.OwnerID).Error; err != nil {
			return fmt.Errorf("transfer service: load owner: %w", err)
		}

		if err := tx.Model(&project).Update("transfer_token", nil).Error; err != nil {
			return fmt.Errorf("transfer service: clear token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.sendMail(ctx, mail.Message{
		To:      []string{owner.Email},
		Subject: fmt.Sprintf("[%s] Ownership transfer rejected", project.Name),
		Body:    fmt.Sprintf("The ownership transfer of the project %q has been rejected.", project.Name),
	})

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &requesterID,
		Action:   "transfer.reject",
		Resource: project.ID,
		Result:   "success",
	})

	return nil
}

// validateTransfer row-locks the project and checks that a transfer is in
// progress, the requester is an admin member, and the presented token
// matches the stored one, its signature and its subject. Expiry is reported
// ahead of a subject mismatch.
func (s *TransferService) validateTransfer(ctx context.Context, tx *gorm.DB, project *models.Project, projectID, requesterID, token string) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("transfer service: load project: %w", err)
	}

	if project.TransferToken == nil || *project.TransferToken == "" {
		return ErrNoTransferInProgress
	}

	membership, err := s.loadMembership(ctx, tx, projectID, requesterID)
	if err != nil {
		return err
	}
	if membership == nil || !membership.IsAdmin {
		return apperrors.ErrForbidden
	}

	if err := s.signer.Verify(token, requesterID); err != nil {
		if errors.Is(err, auth.ErrTransferTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	if token != *project.TransferToken {
		return ErrTokenInvalid
	}

	return nil
}

func (s *TransferService) loadMembership(ctx context.Context, tx *gorm.DB, projectID, userID string) (*models.Membership, error) {
	var membership models.Membership
	err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transfer service: load membership: %w", err)
	}
	return &membership, nil
}

func (s *TransferService) loadUser(ctx context.Context, tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("transfer service: load user: %w", err)
	}
	return &user, nil
}

// sendMail delivers a notification after the surrounding transaction has
// committed. Delivery failures are logged and never surfaced.
func (s *TransferService) sendMail(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("transfer notification delivery failed",
			zap.Strings("to", msg.To),
			zap.Error(err))
	}
}
