package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/models"
	"github.com/taskwell/taskwell/internal/services"
	"github.com/taskwell/taskwell/pkg/logger"
)

const (
	defaultAuditRetention = 90 * 24 * time.Hour
	defaultTokenSpec      = "@daily"
	defaultAuditSpec      = "@daily"
)

// Cleaner coordinates background maintenance tasks: expiring stale ownership
// transfer tokens and pruning old audit logs.
type Cleaner struct {
	db        *gorm.DB
	signer    *iauth.TransferSigner
	audit     *services.AuditService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	tokenSchedule string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetention adjusts how long audit logs are retained before cleanup.
func WithAuditRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithTokenSchedule overrides the cron expression for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron expression for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, signer *iauth.TransferSigner, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:            db,
		signer:        signer,
		audit:         audit,
		now:           time.Now,
		retention:     defaultAuditRetention,
		tokenSchedule: defaultTokenSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db != nil && c.signer != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupTransferTokens(ctx, c.db, c.signer, c.now()); err != nil {
				c.log.Warn("transfer token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.PruneOlderThan(ctx, c.now().Add(-c.retention)); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.db != nil && c.signer != nil {
		if _, err := CleanupTransferTokens(ctx, c.db, c.signer, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.PruneOlderThan(ctx, c.now().Add(-c.retention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupTransferTokens clears ownership transfer tokens whose signing
// timestamp fell outside the validity window. Unreadable tokens are cleared
// too since no verifier will ever accept them.
func CleanupTransferTokens(ctx context.Context, db *gorm.DB, signer *iauth.TransferSigner, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup transfer tokens: db is required")
	}
	if signer == nil {
		return 0, errors.New("cleanup transfer tokens: signer is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var projects []models.Project
	if err := db.WithContext(ctx).
		Where("transfer_token IS NOT NULL").
		Find(&projects).Error; err != nil {
		return 0, fmt.Errorf("cleanup transfer tokens: load projects: %w", err)
	}

	var cleared int64
	for _, project := range projects {
		if project.TransferToken == nil {
			continue
		}

		issuedAt, err := signer.IssuedAt(*project.TransferToken)
		if err == nil && now.Sub(issuedAt) <= signer.MaxAge() {
			continue
		}

		if err := db.WithContext(ctx).Model(&models.Project{}).
			Where("id = ?", project.ID).
			Update("transfer_token", nil).Error; err != nil {
			return cleared, fmt.Errorf("cleanup transfer tokens: clear token: %w", err)
		}
		cleared++
	}

	return cleared, nil
}
