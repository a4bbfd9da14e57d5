package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/database/testutil"
	"github.com/taskwell/taskwell/internal/models"
)

func TestCheckerMemberRolePermissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker := mustChecker(t, db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	member := seedUser(t, db, "member")
	project := seedProject(t, db, owner, true)
	role := seedRole(t, db, project, []string{ViewProject})
	seedMembership(t, db, project, member, role, false)

	ok, err := checker.Check(ctx, member.ID, project, ViewProject)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.Check(ctx, member.ID, project, ModifyProject)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckerAdminFlagGrantsEverything(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker := mustChecker(t, db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	admin := seedUser(t, db, "admin")
	project := seedProject(t, db, owner, true)
	role := seedRole(t, db, project, []string{ViewProject})
	seedMembership(t, db, project, admin, role, true)

	ok, err := checker.Check(ctx, admin.ID, project, ModifyProject)
	require.NoError(t, err)
	require.True(t, ok)

	isAdmin, err := checker.IsProjectAdmin(ctx, admin.ID, project)
	require.NoError(t, err)
	require.True(t, isAdmin)

	isAdmin, err = checker.IsProjectAdmin(ctx, owner.ID, project)
	require.NoError(t, err)
	require.True(t, isAdmin)
}

func TestCheckerNonMembersUsePublicAndAnonSets(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	checker := mustChecker(t, db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	outsider := seedUser(t, db, "outsider")
	project := seedProject(t, db, owner, false)
	project.PublicPermissions = datatypes.JSONSlice[string]([]string{ViewProject})
	project.AnonPermissions = datatypes.JSONSlice[string]([]string{ViewProject})
	require.NoError(t, db.Save(project).Error)

	ok, err := checker.Check(ctx, outsider.ID, project, ViewProject)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.Check(ctx, outsider.ID, project, ModifyProject)
	require.NoError(t, err)
	require.False(t, ok)

	// Anonymous caller.
	ok, err = checker.Check(ctx, "", project, ViewProject)
	require.NoError(t, err)
	require.True(t, ok)

	isAdmin, err := checker.IsProjectAdmin(ctx, outsider.ID, project)
	require.NoError(t, err)
	require.False(t, isAdmin)
}

func mustChecker(t *testing.T, db *gorm.DB) *Checker {
	t.Helper()
	checker, err := NewChecker(db)
	require.NoError(t, err)
	return checker
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedProject(t *testing.T, db *gorm.DB, owner *models.User, private bool) *models.Project {
	t.Helper()
	project := models.Project{
		Name:      "Project " + owner.Username,
		Slug:      "project-" + owner.Username,
		OwnerID:   owner.ID,
		IsPrivate: private,
	}
	require.NoError(t, db.Create(&project).Error)
	return &project
}

func seedRole(t *testing.T, db *gorm.DB, project *models.Project, perms []string) *models.Role {
	t.Helper()
	role := models.Role{
		ProjectID:   project.ID,
		Name:        "Developer",
		Slug:        "developer",
		Permissions: datatypes.JSONSlice[string](perms),
	}
	require.NoError(t, db.Create(&role).Error)
	return &role
}

func seedMembership(t *testing.T, db *gorm.DB, project *models.Project, user *models.User, role *models.Role, admin bool) *models.Membership {
	t.Helper()
	membership := models.Membership{
		ProjectID: project.ID,
		UserID:    user.ID,
		RoleID:    role.ID,
		IsAdmin:   admin,
	}
	require.NoError(t, db.Create(&membership).Error)
	return &membership
}
