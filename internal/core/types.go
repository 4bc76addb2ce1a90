package core

import "bandkeeper/pkg/domain"

// Domain types re-exported so dispatcher callers need not import pkg/domain.
type (
	Band          = domain.Band
	Change        = domain.Change
	Action        = domain.Action
	Severity      = domain.Severity
	Violation     = domain.Violation
	Result        = domain.Result
	RejectedError = domain.RejectedError
	Rule          = domain.Rule
	RulesEngine   = domain.RulesEngine
)

// Change actions published after mutations.
const (
	ActionCreate  = domain.ActionCreate
	ActionUpdate  = domain.ActionUpdate
	ActionDelete  = domain.ActionDelete
	ActionReorder = domain.ActionReorder
)

// Rule violation severities.
const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)
