package models

import (
	"slices"

	dErrors "evidentia/pkg/domain-errors"
)

// transitions is the complete ledger state graph reachable through commands.
// SUPERSEDED is absent on purpose: only the supersession path may enter it.
var transitions = map[LedgerState]map[CommandType]LedgerState{
	StateSealed: {
		CommandClassify: StateClassified,
		CommandReject:   StateRejected,
	},
	StateClassified: {
		CommandStructure: StateStructured,
		CommandReject:    StateRejected,
	},
}

// Transition returns the state reached by applying cmd in current. Illegal
// pairs yield a conflict whose Allowed lists the commands current accepts.
func Transition(current LedgerState, cmd CommandType) (LedgerState, error) {
	if target, ok := transitions[current][cmd]; ok {
		return target, nil
	}
	return "", dErrors.New(dErrors.CodeConflict,
		"command "+string(cmd)+" is not allowed in state "+string(current)).
		WithReason(ReasonIllegalTransition).
		WithAllowed(AllowedCommands(current))
}

// AllowedCommands lists the commands accepted in state s, sorted.
func AllowedCommands(s LedgerState) []string {
	out := make([]string, 0, len(transitions[s]))
	for cmd := range transitions[s] {
		out = append(out, string(cmd))
	}
	slices.Sort(out)
	return out
}

// IsTerminal reports whether no command can move a record out of s.
func (s LedgerState) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanSupersede reports whether a record in s may be replaced. A record is
// superseded at most once.
func (s LedgerState) CanSupersede() bool {
	return s != StateSuperseded
}

// Operation is an authorizable action. Ledger commands use their command type.
type Operation string

const (
	OpDraftWrite Operation = "draft:write"
	OpDraftSeal  Operation = "draft:seal"
	OpQuarantine Operation = "draft:quarantine"
	OpRead       Operation = "read"
	OpPortalBind Operation = "portal:register"
)

// CommandOperation returns the operation guarding cmd.
func CommandOperation(cmd CommandType) Operation { return Operation(cmd) }

// RolePolicy maps operations to the roles allowed to perform them.
type RolePolicy map[Operation][]Role

// DefaultRolePolicy is used when no policy file overrides it.
func DefaultRolePolicy() RolePolicy {
	writers := []Role{RoleAdmin, RoleComplianceOfficer, RoleAnalyst, RoleContributor, RoleSystem}
	return RolePolicy{
		OpDraftWrite: writers,
		OpDraftSeal:  writers,
		OpQuarantine: {RoleAdmin, RoleComplianceOfficer},
		OpRead:       {RoleAdmin, RoleComplianceOfficer, RoleAnalyst, RoleContributor, RoleViewer, RoleSystem},
		OpPortalBind: {RoleAdmin, RoleComplianceOfficer, RoleSystem},

		CommandOperation(CommandClassify):  {RoleAdmin, RoleComplianceOfficer, RoleAnalyst, RoleSystem},
		CommandOperation(CommandStructure): {RoleAdmin, RoleComplianceOfficer, RoleAnalyst, RoleSystem},
		CommandOperation(CommandReject):    {RoleAdmin, RoleComplianceOfficer},
		CommandOperation(CommandSupersede): {RoleAdmin, RoleComplianceOfficer},
	}
}

// Merge returns a copy of p with every operation present in override replaced.
func (p RolePolicy) Merge(override RolePolicy) RolePolicy {
	out := make(RolePolicy, len(p)+len(override))
	for op, roles := range p {
		out[op] = slices.Clone(roles)
	}
	for op, roles := range override {
		out[op] = slices.Clone(roles)
	}
	return out
}

// Authorize returns a forbidden error unless role may perform op.
func (p RolePolicy) Authorize(role Role, op Operation) error {
	if slices.Contains(p[op], role) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "role "+string(role)+" may not perform "+string(op))
}
