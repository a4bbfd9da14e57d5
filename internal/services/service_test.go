package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/database/testutil"
	"github.com/taskwell/taskwell/internal/models"
	"github.com/taskwell/taskwell/pkg/mail"
)

type testEnv struct {
	db          *gorm.DB
	outbox      *mail.Outbox
	signer      *auth.TransferSigner
	users       *UserService
	projects    *ProjectService
	memberships *MembershipService
	transfers   *TransferService
	attributes  *AttributeService
	stats       *StatsService
	quota       *QuotaChecker
	audit       *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSigner(t, mustSigner(t, auth.TransferSignerConfig{}))
}

func newTestEnvWithSigner(t *testing.T, signer *auth.TransferSigner) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	outbox := mail.NewOutbox()

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	quota, err := NewQuotaChecker(db)
	require.NoError(t, err)
	users, err := NewUserService(db)
	require.NoError(t, err)
	projects, err := NewProjectService(db, quota, audit)
	require.NoError(t, err)
	memberships, err := NewMembershipService(db, audit)
	require.NoError(t, err)
	transfers, err := NewTransferService(db, signer, quota, outbox, audit)
	require.NoError(t, err)
	attributes, err := NewAttributeService(db)
	require.NoError(t, err)
	stats, err := NewStatsService(db)
	require.NoError(t, err)

	return &testEnv{
		db:          db,
		outbox:      outbox,
		signer:      signer,
		users:       users,
		projects:    projects,
		memberships: memberships,
		transfers:   transfers,
		attributes:  attributes,
		stats:       stats,
		quota:       quota,
		audit:       audit,
	}
}

func mustSigner(t *testing.T, cfg auth.TransferSignerConfig) *auth.TransferSigner {
	t.Helper()

	if cfg.Secret == "" {
		cfg.Secret = "test-transfer-secret"
	}
	signer, err := auth.NewTransferSigner(cfg)
	require.NoError(t, err)
	return signer
}

func (e *testEnv) seedUser(t *testing.T, username string) *models.User {
	t.Helper()

	user, err := e.users.Create(context.Background(), CreateUserInput{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "s3cret-password",
		FullName: username,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) seedProject(t *testing.T, owner *models.User, isPrivate bool) *models.Project {
	t.Helper()

	project, err := e.projects.Create(context.Background(), CreateProjectInput{
		Name:      fmt.Sprintf("%s project", owner.Username),
		OwnerID:   owner.ID,
		IsPrivate: isPrivate,
	})
	require.NoError(t, err)
	return project
}

// seedMember adds a user to the project reusing the project's first role.
func (e *testEnv) seedMember(t *testing.T, project *models.Project, user *models.User, isAdmin bool) *models.Membership {
	t.Helper()

	var role models.Role
	require.NoError(t, e.db.Where("project_id = ?", project.ID).First(&role).Error)

	membership, err := e.memberships.Create(context.Background(), CreateMembershipInput{
		ProjectID: project.ID,
		UserID:    user.ID,
		RoleID:    role.ID,
		IsAdmin:   isAdmin,
	})
	require.NoError(t, err)
	return membership
}

func (e *testEnv) reloadProject(t *testing.T, id string) *models.Project {
	t.Helper()

	var project models.Project
	require.NoError(t, e.db.First(&project, "id = ?", id).Error)
	return &project
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
