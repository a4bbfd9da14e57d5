package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/models"
)

func TestQuotaCheckerReadsThroughTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	joiner := env.seedUser(t, "joiner")
	project := env.seedProject(t, owner, true)

	limit := 1
	owner.MaxMembershipsPrivateProjects = &limit

	// A membership created inside an open transaction must already count
	// for a checker bound to that transaction, before anything commits.
	err := env.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		require.NoError(t, tx.First(&role, "project_id = ?", project.ID).Error)
		require.NoError(t, tx.Create(&models.Membership{
			ProjectID: project.ID,
			UserID:    joiner.ID,
			RoleID:    role.ID,
		}).Error)

		err := env.quota.WithTx(tx).CheckProjectMemberships(ctx, owner, project)
		require.Error(t, err)
		require.Contains(t, err.Error(), "limit of memberships for private projects")
		return nil
	})
	require.NoError(t, err)
}

func TestQuotaCheckerWithTxNilKeepsChecker(t *testing.T) {
	env := newTestEnv(t)
	require.Same(t, env.quota, env.quota.WithTx(nil))
}
