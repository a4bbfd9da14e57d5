package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskwell/taskwell/internal/models"
)

func TestStoryStatusSlugUniquePerProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)
	other := env.seedProject(t, env.seedUser(t, "other"), true)

	first, err := env.attributes.CreateStoryStatus(ctx, project.ID, StatusInput{Name: "Code Review"})
	require.NoError(t, err)
	require.Equal(t, "code-review", first.Slug)

	second, err := env.attributes.CreateStoryStatus(ctx, project.ID, StatusInput{Name: "Code review"})
	require.NoError(t, err)
	require.Equal(t, "code-review-2", second.Slug)

	// Same name on another project keeps the plain slug.
	foreign, err := env.attributes.CreateStoryStatus(ctx, other.ID, StatusInput{Name: "Code Review"})
	require.NoError(t, err)
	require.Equal(t, "code-review", foreign.Slug)
}

func TestStoryStatusRenameKeepsEquivalentSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	status, err := env.attributes.CreateStoryStatus(ctx, project.ID, StatusInput{Name: "Code Review"})
	require.NoError(t, err)

	renamed, err := env.attributes.UpdateStoryStatus(ctx, status.ID, StatusInput{Name: "CODE review"})
	require.NoError(t, err)
	require.Equal(t, "CODE review", renamed.Name)
	require.Equal(t, "code-review", renamed.Slug)
}

func TestStoryStatusClosedToggleRecalculatesStories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	status, err := env.attributes.CreateStoryStatus(ctx, project.ID, StatusInput{Name: "Review"})
	require.NoError(t, err)

	story := &models.UserStory{
		ProjectID: project.ID,
		OwnerID:   owner.ID,
		StatusID:  status.ID,
		Subject:   "write docs",
	}
	require.NoError(t, env.db.Create(story).Error)
	require.False(t, story.IsClosed)

	_, err = env.attributes.UpdateStoryStatus(ctx, status.ID, StatusInput{Name: status.Name, IsClosed: true})
	require.NoError(t, err)

	require.NoError(t, env.db.First(story, "id = ?", story.ID).Error)
	require.True(t, story.IsClosed)

	_, err = env.attributes.UpdateStoryStatus(ctx, status.ID, StatusInput{Name: status.Name, IsClosed: false})
	require.NoError(t, err)

	require.NoError(t, env.db.First(story, "id = ?", story.ID).Error)
	require.False(t, story.IsClosed)
}

func TestTaskStatusClosedToggleRecalculatesParentStory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	storyStatus, err := env.attributes.CreateStoryStatus(ctx, project.ID, StatusInput{Name: "Review", IsClosed: true})
	require.NoError(t, err)
	taskStatus, err := env.attributes.CreateTaskStatus(ctx, project.ID, StatusInput{Name: "Doing"})
	require.NoError(t, err)

	story := &models.UserStory{
		ProjectID: project.ID,
		OwnerID:   owner.ID,
		StatusID:  storyStatus.ID,
		Subject:   "ship feature",
	}
	require.NoError(t, env.db.Create(story).Error)

	task := &models.Task{
		ProjectID:   project.ID,
		UserStoryID: &story.ID,
		OwnerID:     owner.ID,
		StatusID:    taskStatus.ID,
		Subject:     "last step",
	}
	require.NoError(t, env.db.Create(task).Error)

	// An open task keeps the story open despite its closed story status.
	_, err = env.attributes.UpdateStoryStatus(ctx, storyStatus.ID, StatusInput{Name: storyStatus.Name, IsClosed: true})
	require.NoError(t, err)
	require.NoError(t, env.db.First(story, "id = ?", story.ID).Error)
	require.False(t, story.IsClosed)

	// Closing the task status closes the story.
	_, err = env.attributes.UpdateTaskStatus(ctx, taskStatus.ID, StatusInput{Name: taskStatus.Name, IsClosed: true})
	require.NoError(t, err)
	require.NoError(t, env.db.First(story, "id = ?", story.ID).Error)
	require.True(t, story.IsClosed)
}

func TestPointsDuplicateNameRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	_, err := env.attributes.CreatePoints(ctx, project.ID, PointsInput{Name: "13", Value: floatPtr(13)})
	require.NoError(t, err)

	_, err = env.attributes.CreatePoints(ctx, project.ID, PointsInput{Name: "13", Value: floatPtr(13)})
	require.ErrorIs(t, err, ErrPointsNameDuplicated)
}

func TestDeletePointsReassignsReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	var role models.Role
	require.NoError(t, env.db.Where("project_id = ?", project.ID).First(&role).Error)

	doomed, err := env.attributes.CreatePoints(ctx, project.ID, PointsInput{Name: "13", Value: floatPtr(13)})
	require.NoError(t, err)
	replacement, err := env.attributes.CreatePoints(ctx, project.ID, PointsInput{Name: "20", Value: floatPtr(20)})
	require.NoError(t, err)

	var storyStatus models.StoryStatus
	require.NoError(t, env.db.Where("project_id = ?", project.ID).First(&storyStatus).Error)
	story := &models.UserStory{ProjectID: project.ID, OwnerID: owner.ID, StatusID: storyStatus.ID}
	require.NoError(t, env.db.Create(story).Error)

	rp := &models.RolePoints{UserStoryID: story.ID, RoleID: role.ID, PointsID: doomed.ID}
	require.NoError(t, env.db.Create(rp).Error)

	// Make the doomed value the project default too.
	require.NoError(t, env.db.Model(&models.Project{}).
		Where("id = ?", project.ID).
		Update("default_points_id", doomed.ID).Error)

	require.NoError(t, env.attributes.DeletePoints(ctx, doomed.ID, replacement.ID))

	require.NoError(t, env.db.First(rp, "id = ?", rp.ID).Error)
	require.Equal(t, replacement.ID, rp.PointsID)

	reloaded := env.reloadProject(t, project.ID)
	require.NotNil(t, reloaded.DefaultPointsID)
	require.Equal(t, replacement.ID, *reloaded.DefaultPointsID)

	var count int64
	require.NoError(t, env.db.Model(&models.Points{}).
		Where("id = ?", doomed.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestDeletePointsRequiresSameProjectReplacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)
	other := env.seedProject(t, env.seedUser(t, "other"), true)

	doomed, err := env.attributes.CreatePoints(ctx, project.ID, PointsInput{Name: "13"})
	require.NoError(t, err)
	foreign, err := env.attributes.CreatePoints(ctx, other.ID, PointsInput{Name: "13"})
	require.NoError(t, err)

	require.Error(t, env.attributes.DeletePoints(ctx, doomed.ID, foreign.ID))
	require.Error(t, env.attributes.DeletePoints(ctx, doomed.ID, doomed.ID))
}

func TestEnsureRolePointsBackfillsMissingRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	project := env.seedProject(t, owner, true)

	var role models.Role
	require.NoError(t, env.db.Where("project_id = ?", project.ID).First(&role).Error)

	var storyStatus models.StoryStatus
	require.NoError(t, env.db.Where("project_id = ?", project.ID).First(&storyStatus).Error)

	stories := make([]*models.UserStory, 0, 2)
	for i := 0; i < 2; i++ {
		story := &models.UserStory{ProjectID: project.ID, OwnerID: owner.ID, StatusID: storyStatus.ID}
		require.NoError(t, env.db.Create(story).Error)
		stories = append(stories, story)
	}

	require.NoError(t, env.attributes.EnsureRolePoints(ctx, project.ID))

	project = env.reloadProject(t, project.ID)
	for _, story := range stories {
		var rp models.RolePoints
		require.NoError(t, env.db.
			Where("user_story_id = ? AND role_id = ?", story.ID, role.ID).
			First(&rp).Error)
		require.Equal(t, *project.DefaultPointsID, rp.PointsID)
	}

	// Idempotent: a second run creates no duplicates.
	require.NoError(t, env.attributes.EnsureRolePoints(ctx, project.ID))
	var count int64
	require.NoError(t, env.db.Model(&models.RolePoints{}).
		Where("role_id = ?", role.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)
}
