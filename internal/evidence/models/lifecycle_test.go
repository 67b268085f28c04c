package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "evidentia/pkg/domain-errors"
)

var allStates = []LedgerState{StateSealed, StateClassified, StateStructured, StateRejected, StateSuperseded}

var allCommands = []CommandType{CommandClassify, CommandStructure, CommandReject, CommandSupersede}

func TestTransitionTable(t *testing.T) {
	expected := map[LedgerState]map[CommandType]LedgerState{
		StateSealed:     {CommandClassify: StateClassified, CommandReject: StateRejected},
		StateClassified: {CommandStructure: StateStructured, CommandReject: StateRejected},
	}

	for _, state := range allStates {
		for _, cmd := range allCommands {
			t.Run(string(state)+"/"+string(cmd), func(t *testing.T) {
				got, err := Transition(state, cmd)
				want, legal := expected[state][cmd]
				if legal {
					require.NoError(t, err)
					assert.Equal(t, want, got)
					return
				}
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
				de, _ := dErrors.As(err)
				assert.Equal(t, AllowedCommands(state), de.Allowed)
				assert.Equal(t, ReasonIllegalTransition, de.Reason)
			})
		}
	}
}

func TestSupersededOnlyThroughSupersession(t *testing.T) {
	for _, state := range allStates {
		_, err := Transition(state, CommandSupersede)
		assert.Error(t, err, "state %s", state)
	}
	assert.True(t, StateRejected.CanSupersede())
	assert.False(t, StateSuperseded.CanSupersede())
}

func TestTerminalStates(t *testing.T) {
	assert.False(t, StateSealed.IsTerminal())
	assert.False(t, StateClassified.IsTerminal())
	assert.True(t, StateStructured.IsTerminal())
	assert.True(t, StateRejected.IsTerminal())
	assert.True(t, StateSuperseded.IsTerminal())
}

func TestRolePolicy(t *testing.T) {
	p := DefaultRolePolicy()

	t.Run("analyst may classify but not reject", func(t *testing.T) {
		assert.NoError(t, p.Authorize(RoleAnalyst, CommandOperation(CommandClassify)))
		err := p.Authorize(RoleAnalyst, CommandOperation(CommandReject))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("viewer is read-only", func(t *testing.T) {
		assert.NoError(t, p.Authorize(RoleViewer, OpRead))
		assert.Error(t, p.Authorize(RoleViewer, OpDraftWrite))
	})

	t.Run("override replaces only named operations", func(t *testing.T) {
		merged := p.Merge(RolePolicy{CommandOperation(CommandReject): {RoleAnalyst}})
		assert.NoError(t, merged.Authorize(RoleAnalyst, CommandOperation(CommandReject)))
		assert.Error(t, merged.Authorize(RoleAdmin, CommandOperation(CommandReject)))
		assert.NoError(t, merged.Authorize(RoleAnalyst, CommandOperation(CommandClassify)))
		assert.Error(t, p.Authorize(RoleAnalyst, CommandOperation(CommandReject)), "original policy is unchanged")
	})
}
