package session

import (
	"fmt"
	"strings"

	"github.com/backkem/mlle/pkg/protocol"
)

// transitions lists, per state, the accepted commands and their next state.
// The LIB entry of StateTools lets a tool skip the TOOLS exchange.
var transitions = [...]map[protocol.CommandID]State{
	StateVersion: {
		protocol.CmdVersion: StateTools,
	},
	StateTools: {
		protocol.CmdTools: StateLib,
		protocol.CmdLib:   StateLicense,
	},
	StateLib: {
		protocol.CmdLib: StateLicense,
	},
	StateLicense: {
		protocol.CmdFeature:       StateLicense,
		protocol.CmdFile:          StateLicense,
		protocol.CmdLicense:       StateLicense,
		protocol.CmdReturnFeature: StateLicense,
		protocol.CmdReturnLicense: StateLicense,
	},
}

// NextState returns the state after receiving id in state s, and whether
// id is legal there.
func NextState(s State, id protocol.CommandID) (State, bool) {
	if !s.IsValid() {
		return s, false
	}
	next, ok := transitions[s][id]
	if !ok {
		return s, false
	}
	return next, true
}

// Expected returns the commands accepted in state s in command table order.
func Expected(s State) []protocol.CommandID {
	if !s.IsValid() {
		return nil
	}
	var ids []protocol.CommandID
	for _, id := range protocol.Commands() {
		if _, ok := transitions[s][id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// acceptedAnywhere reports whether some state accepts id.
func acceptedAnywhere(id protocol.CommandID) bool {
	for s := range transitions {
		if _, ok := transitions[s][id]; ok {
			return true
		}
	}
	return false
}

// ExplainInvalid returns the message sent when id is rejected in state s.
func ExplainInvalid(s State, id protocol.CommandID) string {
	if !acceptedAnywhere(id) {
		return fmt.Sprintf(msgNeverValid, id)
	}

	expected := Expected(s)
	names := make([]string, len(expected))
	for i, e := range expected {
		names[i] = e.String()
	}
	prefix := ""
	if len(names) > 1 {
		prefix = "is one of "
	}
	return fmt.Sprintf(msgInvalidState, id, prefix, strings.Join(names, ", "))
}
