package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusdesk/report-portal-api/internal/models"
)

func TestAllowedModeratorRecommendations(t *testing.T) {
	require.True(t, Allowed(models.StatusPending, models.RoleModerator, models.StatusRequestedForApproval))
	require.True(t, Allowed(models.StatusPending, models.RoleModerator, models.StatusRequestedForRejection))
	// moderators may revise a prior recommendation
	require.True(t, Allowed(models.StatusRequestedForApproval, models.RoleModerator, models.StatusRequestedForRejection))
	require.True(t, Allowed(models.StatusRequestedForRejection, models.RoleModerator, models.StatusRequestedForApproval))
}

func TestAllowedAuthorityDecisions(t *testing.T) {
	require.True(t, Allowed(models.StatusRequestedForApproval, models.RoleAuthority, models.StatusApproved))
	require.True(t, Allowed(models.StatusRequestedForApproval, models.RoleAuthority, models.StatusRejected))
	require.True(t, Allowed(models.StatusRequestedForRejection, models.RoleAuthority, models.StatusApproved))
	require.True(t, Allowed(models.StatusRequestedForRejection, models.RoleAuthority, models.StatusRejected))
}

func TestAllowedRejectsIllegalMoves(t *testing.T) {
	// no skipping the moderator stage
	require.False(t, Allowed(models.StatusPending, models.RoleAuthority, models.StatusApproved))
	require.False(t, Allowed(models.StatusPending, models.RoleAuthority, models.StatusRejected))
	// approved is terminal
	require.False(t, Allowed(models.StatusApproved, models.RoleModerator, models.StatusRequestedForRejection))
	require.False(t, Allowed(models.StatusApproved, models.RoleAuthority, models.StatusRejected))
	require.False(t, Allowed(models.StatusApproved, models.RoleSubmitter, models.StatusPending))
	// submitters cannot set review statuses
	require.False(t, Allowed(models.StatusPending, models.RoleSubmitter, models.StatusApproved))
	require.False(t, Allowed(models.StatusRejected, models.RoleSubmitter, models.StatusApproved))
}

func TestAllowedEditReentry(t *testing.T) {
	require.True(t, Allowed(models.StatusRejected, models.RoleSubmitter, models.StatusPending))
	require.False(t, Allowed(models.StatusRequestedForRejection, models.RoleSubmitter, models.StatusPending))
}

func TestValidTarget(t *testing.T) {
	require.True(t, ValidTarget(models.RoleModerator, models.StatusRequestedForApproval))
	require.False(t, ValidTarget(models.RoleModerator, models.StatusApproved))
	require.True(t, ValidTarget(models.RoleAuthority, models.StatusRejected))
	require.False(t, ValidTarget(models.RoleAuthority, models.StatusRequestedForApproval))
	require.False(t, ValidTarget(models.RoleSubmitter, models.StatusPending))
}

func TestCommentRequired(t *testing.T) {
	require.True(t, CommentRequired(models.StatusRequestedForRejection))
	require.True(t, CommentRequired(models.StatusRejected))
	require.False(t, CommentRequired(models.StatusRequestedForApproval))
	require.False(t, CommentRequired(models.StatusApproved))
	require.False(t, CommentRequired(models.StatusPending))
}
