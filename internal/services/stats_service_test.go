package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskwell/taskwell/internal/models"
)

func TestMemberStatsCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, "owner")
	member := env.seedUser(t, "member")
	project := env.seedProject(t, owner, true)
	env.seedMember(t, project, member, false)

	openIssue, err := env.attributes.CreateIssueStatus(ctx, project.ID, StatusInput{Name: "Open"})
	require.NoError(t, err)
	closedIssue, err := env.attributes.CreateIssueStatus(ctx, project.ID, StatusInput{Name: "Fixed", IsClosed: true})
	require.NoError(t, err)
	openTask, err := env.attributes.CreateTaskStatus(ctx, project.ID, StatusInput{Name: "Doing"})
	require.NoError(t, err)
	closedTask, err := env.attributes.CreateTaskStatus(ctx, project.ID, StatusInput{Name: "Shipped", IsClosed: true})
	require.NoError(t, err)

	// member reported two bugs, one of which owner fixed; member fixed one
	// of their own.
	require.NoError(t, env.db.Create(&models.Issue{
		ProjectID: project.ID, OwnerID: member.ID, AssignedToID: &member.ID, StatusID: closedIssue.ID,
	}).Error)
	require.NoError(t, env.db.Create(&models.Issue{
		ProjectID: project.ID, OwnerID: member.ID, AssignedToID: &owner.ID, StatusID: closedIssue.ID,
	}).Error)
	require.NoError(t, env.db.Create(&models.Issue{
		ProjectID: project.ID, OwnerID: owner.ID, AssignedToID: &member.ID, StatusID: openIssue.ID,
	}).Error)

	require.NoError(t, env.db.Create(&models.Task{
		ProjectID: project.ID, OwnerID: owner.ID, AssignedToID: &member.ID, StatusID: closedTask.ID,
	}).Error)
	require.NoError(t, env.db.Create(&models.Task{
		ProjectID: project.ID, OwnerID: owner.ID, AssignedToID: &member.ID, StatusID: openTask.ID, IsIocaine: true,
	}).Error)

	stats, err := env.stats.MemberStats(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byUser := make(map[string]MemberStats, len(stats))
	for _, row := range stats {
		byUser[row.UserID] = row
	}

	require.EqualValues(t, 2, byUser[member.ID].CreatedBugs)
	require.EqualValues(t, 1, byUser[member.ID].ClosedBugs)
	require.EqualValues(t, 1, byUser[member.ID].ClosedTasks)
	require.EqualValues(t, 1, byUser[member.ID].IocaineTasks)

	require.EqualValues(t, 1, byUser[owner.ID].CreatedBugs)
	require.EqualValues(t, 1, byUser[owner.ID].ClosedBugs)
	require.EqualValues(t, 0, byUser[owner.ID].ClosedTasks)
	require.EqualValues(t, 0, byUser[owner.ID].IocaineTasks)
}

func TestMemberStatsUnknownProject(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.stats.MemberStats(context.Background(), "11111111-2222-3333-4444-555555555555")
	require.ErrorIs(t, err, ErrProjectNotFound)
}
