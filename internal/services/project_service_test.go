package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskwell/taskwell/internal/models"
	"github.com/taskwell/taskwell/internal/permissions"
)

func TestProjectCreateSeedsDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project, err := env.projects.Create(ctx, CreateProjectInput{
		Name:      "Rocket Launch",
		OwnerID:   owner.ID,
		IsPrivate: true,
	})
	require.NoError(t, err)
	require.Equal(t, "rocket-launch", project.Slug)

	var membership models.Membership
	require.NoError(t, env.db.
		Where("project_id = ? AND user_id = ?", project.ID, owner.ID).
		First(&membership).Error)
	require.True(t, membership.IsAdmin)

	var roles []models.Role
	require.NoError(t, env.db.Where("project_id = ?", project.ID).Find(&roles).Error)
	require.Len(t, roles, 1)
	require.True(t, roles[0].Computable)

	var statusCount int64
	require.NoError(t, env.db.Model(&models.StoryStatus{}).
		Where("project_id = ?", project.ID).Count(&statusCount).Error)
	require.EqualValues(t, len(defaultStoryStatuses), statusCount)

	reloaded := env.reloadProject(t, project.ID)
	require.NotNil(t, reloaded.DefaultPointsID)
}

func TestProjectCreateSlugCollisionGetsSuffix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	first, err := env.projects.Create(ctx, CreateProjectInput{Name: "Apollo", OwnerID: owner.ID, IsPrivate: true})
	require.NoError(t, err)
	second, err := env.projects.Create(ctx, CreateProjectInput{Name: "Apollo", OwnerID: owner.ID, IsPrivate: true})
	require.NoError(t, err)

	require.Equal(t, "apollo", first.Slug)
	require.Equal(t, "apollo-2", second.Slug)
}

func TestProjectGetBySlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	found, err := env.projects.GetBySlug(ctx, project.Slug)
	require.NoError(t, err)
	require.Equal(t, project.ID, found.ID)

	_, err = env.projects.GetBySlug(ctx, "no-such-project")
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectCreateEnforcesOwnerQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	require.NoError(t, env.db.Model(owner).Update("max_private_projects", 1).Error)

	_, err := env.projects.Create(ctx, CreateProjectInput{Name: "First", OwnerID: owner.ID, IsPrivate: true})
	require.NoError(t, err)

	_, err = env.projects.Create(ctx, CreateProjectInput{Name: "Second", OwnerID: owner.ID, IsPrivate: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "You can't have more private projects")

	// Public projects count against a separate limit.
	_, err = env.projects.Create(ctx, CreateProjectInput{Name: "Third", OwnerID: owner.ID, IsPrivate: false})
	require.NoError(t, err)
}

func TestProjectCreatePublicGetsAnonPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project, err := env.projects.Create(ctx, CreateProjectInput{Name: "Open", OwnerID: owner.ID, IsPrivate: false})
	require.NoError(t, err)

	require.ElementsMatch(t, permissions.AnonPermissions, []string(project.AnonPermissions))
	require.ElementsMatch(t, permissions.AnonPermissions, []string(project.PublicPermissions))
}

func TestProjectUpdateEmptyNameRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	_, err := env.projects.Update(ctx, project.ID, UpdateProjectInput{Name: strPtr("   ")})
	require.Error(t, err)

	reloaded := env.reloadProject(t, project.ID)
	require.Equal(t, project.Name, reloaded.Name)
}

func TestProjectVisibilityFlipRewritesPermissionSets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)
	require.Empty(t, []string(project.AnonPermissions))

	updated, err := env.projects.Update(ctx, project.ID, UpdateProjectInput{IsPrivate: boolPtr(false)})
	require.NoError(t, err)
	require.False(t, updated.IsPrivate)
	require.ElementsMatch(t, permissions.AnonPermissions, []string(updated.AnonPermissions))

	updated, err = env.projects.Update(ctx, project.ID, UpdateProjectInput{IsPrivate: boolPtr(true)})
	require.NoError(t, err)
	require.True(t, updated.IsPrivate)
	require.Empty(t, []string(updated.AnonPermissions))
	require.Empty(t, []string(updated.PublicPermissions))
}

func TestProjectVisibilityFlipChecksTargetQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	require.NoError(t, env.db.Model(owner).Update("max_public_projects", 0).Error)
	project := env.seedProject(t, owner, true)

	_, err := env.projects.Update(ctx, project.ID, UpdateProjectInput{IsPrivate: boolPtr(false)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "You can't have more public projects")
	require.True(t, env.reloadProject(t, project.ID).IsPrivate)
}

func TestProjectListByMemberRespectsUserOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	member := env.seedUser(t, "member")
	alpha, err := env.projects.Create(ctx, CreateProjectInput{Name: "Alpha", OwnerID: owner.ID, IsPrivate: true})
	require.NoError(t, err)
	beta, err := env.projects.Create(ctx, CreateProjectInput{Name: "Beta", OwnerID: owner.ID, IsPrivate: true})
	require.NoError(t, err)
	env.seedMember(t, alpha, member, false)
	env.seedMember(t, beta, member, false)

	require.NoError(t, env.memberships.BulkUpdateOrder(ctx, member.ID, []ProjectOrderInput{
		{ProjectID: alpha.ID, Order: 2},
		{ProjectID: beta.ID, Order: 1},
	}))

	projects, err := env.projects.List(ctx, ListProjectsOptions{MemberID: member.ID})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, "Alpha", projects[0].Name)

	projects, err = env.projects.List(ctx, ListProjectsOptions{MemberID: member.ID, OrderByUserOrder: true})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, "Beta", projects[0].Name)
}

func TestProjectDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	member := env.seedUser(t, "member")
	project := env.seedProject(t, owner, true)
	env.seedMember(t, project, member, false)

	require.NoError(t, env.projects.Delete(ctx, project.ID))

	_, err := env.projects.Get(ctx, project.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)

	var memberships int64
	require.NoError(t, env.db.Model(&models.Membership{}).
		Where("project_id = ?", project.ID).Count(&memberships).Error)
	require.Zero(t, memberships)

	require.ErrorIs(t, env.projects.Delete(ctx, project.ID), ErrProjectNotFound)
}
