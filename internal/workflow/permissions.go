package workflow

import (
	"fmt"
	"strings"

	"github.com/spec-kit/service-ticket/internal/domain"
)

// Rejection messages returned to callers verbatim.
const (
	ReasonAssociateNotOwner      = "Associates can only edit tickets they created"
	ReasonAssociateStatus        = "Associates cannot change ticket status directly"
	ReasonAssociateSeverityInRev = "Associates cannot change severity when ticket is in Review status"
	ReasonManagerIsOwner         = "Managers cannot edit tickets they created"
	ReasonManagerFields          = "Managers can only change ticket severity"
	ReasonManagerStatus          = "Managers cannot directly change ticket status"
	ReasonManagerSeverityReason  = "Severity change reason is mandatory for Managers"
	ReasonApproveOwnTicket       = "Managers cannot approve tickets they created"
	ReasonApproveStatus          = "Only tickets in Draft or Review status can be approved"
	ReasonApproveRole            = "Only managers can approve tickets"
	ReasonDeleteStatus           = "Cannot delete tickets in Pending, Open, or Closed status"
)

type ownership int

const (
	mustOwn ownership = iota + 1
	mustNotOwn
)

type ownershipRule struct {
	requirement ownership
	reason      string
}

var ownershipRules = map[domain.UserRole]ownershipRule{
	domain.UserRoleAssociate: {requirement: mustOwn, reason: ReasonAssociateNotOwner},
	domain.UserRoleManager:   {requirement: mustNotOwn, reason: ReasonManagerIsOwner},
}

// fieldRule decides one (role, field, status) combination. Rules are matched
// top to bottom; an empty statuses list matches any status.
type fieldRule struct {
	role           domain.UserRole
	fields         []Field
	statuses       []domain.TicketStatus
	allow          bool
	reason         string
	requiresReason bool
	implies        domain.TicketStatus
}

var fieldRules = []fieldRule{
	{role: domain.UserRoleAssociate, fields: []Field{FieldStatus}, reason: ReasonAssociateStatus},
	{role: domain.UserRoleAssociate, fields: []Field{FieldSeverity}, statuses: []domain.TicketStatus{domain.TicketStatusReview}, reason: ReasonAssociateSeverityInRev},
	{role: domain.UserRoleAssociate, fields: []Field{FieldTitle, FieldDescription}, statuses: []domain.TicketStatus{domain.TicketStatusReview}, allow: true, implies: domain.TicketStatusDraft},
	{role: domain.UserRoleAssociate, fields: []Field{FieldTitle, FieldDescription, FieldSeverity, FieldAssignedToID, FieldDueDate}, allow: true},

	{role: domain.UserRoleManager, fields: []Field{FieldTitle, FieldDescription, FieldAssignedToID, FieldDueDate}, reason: ReasonManagerFields},
	{role: domain.UserRoleManager, fields: []Field{FieldStatus}, reason: ReasonManagerStatus},
	{role: domain.UserRoleManager, fields: []Field{FieldSeverity}, allow: true, requiresReason: true, implies: domain.TicketStatusReview},
}

func (r fieldRule) matches(role domain.UserRole, field Field, status domain.TicketStatus) bool {
	if r.role != role {
		return false
	}
	if !containsField(r.fields, field) {
		return false
	}
	if len(r.statuses) == 0 {
		return true
	}
	for _, s := range r.statuses {
		if s == status {
			return true
		}
	}
	return false
}

func lookupRule(role domain.UserRole, field Field, status domain.TicketStatus) (fieldRule, bool) {
	for _, rule := range fieldRules {
		if rule.matches(role, field, status) {
			return rule, true
		}
	}
	return fieldRule{}, false
}

// UpdateContext provides context for update authorization.
type UpdateContext struct {
	ActorID string
	Role    domain.UserRole
	Ticket  domain.Ticket
	Changes ChangeSet
}

// AuthorizeUpdate evaluates a proposed change set against the role table.
// On success it returns the amended change set: unchanged status/severity
// values are dropped and any status implied by the rules is added. The input
// change set is never modified.
func AuthorizeUpdate(ctx UpdateContext) (ChangeSet, GuardResult) {
	rule, ok := ownershipRules[ctx.Role]
	if !ok {
		return ctx.Changes, deny(fmt.Sprintf("unknown role: %s", ctx.Role))
	}
	isCreator := ctx.Ticket.CreatedByID == ctx.ActorID
	if rule.requirement == mustOwn && !isCreator {
		return ctx.Changes, deny(rule.reason)
	}
	if rule.requirement == mustNotOwn && isCreator {
		return ctx.Changes, deny(rule.reason)
	}

	changes := ctx.Changes.normalize(ctx.Ticket)
	var implied domain.TicketStatus
	for _, field := range changes.Fields() {
		fr, found := lookupRule(ctx.Role, field, ctx.Ticket.Status)
		if !found {
			return ctx.Changes, deny(fmt.Sprintf("%s cannot change %s", strings.ToLower(string(ctx.Role)), field))
		}
		if !fr.allow {
			return ctx.Changes, deny(fr.reason)
		}
		if fr.requiresReason && strings.TrimSpace(changes.Reason) == "" {
			return ctx.Changes, deny(ReasonManagerSeverityReason)
		}
		if fr.implies != "" {
			implied = fr.implies
		}
	}

	if implied != "" && implied != ctx.Ticket.Status {
		changes = changes.WithStatus(implied)
	}
	return changes, allow()
}

// ApproveContext provides context for approval guards.
type ApproveContext struct {
	ActorID string
	Role    domain.UserRole
	Ticket  domain.Ticket
}

var approvableStatuses = []domain.TicketStatus{domain.TicketStatusDraft, domain.TicketStatusReview}

// CanApprove evaluates whether a manager may approve the ticket.
func CanApprove(ctx ApproveContext) GuardResult {
	if ctx.Role != domain.UserRoleManager {
		return deny(ReasonApproveRole)
	}
	if ctx.Ticket.CreatedByID == ctx.ActorID {
		return deny(ReasonApproveOwnTicket)
	}
	for _, s := range approvableStatuses {
		if ctx.Ticket.Status == s {
			return allow()
		}
	}
	return deny(ReasonApproveStatus)
}

// ApprovedStatus is the status an approved ticket moves to.
func ApprovedStatus() domain.TicketStatus {
	return domain.TicketStatusPending
}

var deletableStatuses = []domain.TicketStatus{domain.TicketStatusDraft, domain.TicketStatusReview}

// CanDelete evaluates whether a ticket in the given status may be soft deleted.
func CanDelete(status domain.TicketStatus) GuardResult {
	for _, s := range deletableStatuses {
		if status == s {
			return allow()
		}
	}
	return deny(ReasonDeleteStatus)
}

func containsField(fields []Field, f Field) bool {
	for _, candidate := range fields {
		if candidate == f {
			return true
		}
	}
	return false
}
