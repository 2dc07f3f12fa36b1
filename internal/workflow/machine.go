// Package workflow centralizes the record state machine. Every status
// transition in the system is looked up in one table instead of ad hoc
// checks scattered across handlers.
package workflow

import (
	"github.com/campusdesk/report-portal-api/internal/models"
)

// transitionKey identifies one legal move.
type transitionKey struct {
	from models.RecordStatus
	role models.Role
	to   models.RecordStatus
}

// transitions is the full legality table. Absence means reject.
//
//	pending ─┬─ moderator ─→ requestedForApproval ─┬─ authority ─→ approved
//	         └─ moderator ─→ requestedForRejection ─┴─ authority ─→ rejected ── submitter edit ─→ pending
//
// Moderators may revise a prior recommendation until the authority
// decides; approved is terminal; rejected only re-enters via edit.
var transitions = map[transitionKey]struct{}{
	{models.StatusPending, models.RoleModerator, models.StatusRequestedForApproval}:                {},
	{models.StatusPending, models.RoleModerator, models.StatusRequestedForRejection}:               {},
	{models.StatusRequestedForApproval, models.RoleModerator, models.StatusRequestedForApproval}:   {},
	{models.StatusRequestedForApproval, models.RoleModerator, models.StatusRequestedForRejection}:  {},
	{models.StatusRequestedForRejection, models.RoleModerator, models.StatusRequestedForApproval}:  {},
	{models.StatusRequestedForRejection, models.RoleModerator, models.StatusRequestedForRejection}: {},

	{models.StatusRequestedForApproval, models.RoleAuthority, models.StatusApproved}:  {},
	{models.StatusRequestedForApproval, models.RoleAuthority, models.StatusRejected}:  {},
	{models.StatusRequestedForRejection, models.RoleAuthority, models.StatusApproved}: {},
	{models.StatusRequestedForRejection, models.RoleAuthority, models.StatusRejected}: {},

	{models.StatusRejected, models.RoleSubmitter, models.StatusPending}: {},
}

// Allowed reports whether role may move a record from its current status
// to the target status.
func Allowed(from models.RecordStatus, role models.Role, to models.RecordStatus) bool {
	_, ok := transitions[transitionKey{from: from, role: role, to: to}]
	return ok
}

// ValidTarget reports whether the target status is one the role may ever
// set, independent of the current status. Used to reject malformed
// verification requests early.
func ValidTarget(role models.Role, to models.RecordStatus) bool {
	switch role {
	case models.RoleModerator:
		return to == models.StatusRequestedForApproval || to == models.StatusRequestedForRejection
	case models.RoleAuthority:
		return to == models.StatusApproved || to == models.StatusRejected
	default:
		return false
	}
}

// CommentRequired reports whether a non-empty reviewer comment must
// accompany a transition into the target status.
func CommentRequired(to models.RecordStatus) bool {
	return to == models.StatusRequestedForRejection || to == models.StatusRejected
}
