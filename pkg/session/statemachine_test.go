package session

import (
	"testing"

	"github.com/backkem/mlle/pkg/protocol"
)

func TestNextState(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		cmd    protocol.CommandID
		want   State
		wantOK bool
	}{
		{"version", StateVersion, protocol.CmdVersion, StateTools, true},
		{"feature before version", StateVersion, protocol.CmdFeature, StateVersion, false},
		{"tools", StateTools, protocol.CmdTools, StateLib, true},
		{"lib shortcut", StateTools, protocol.CmdLib, StateLicense, true},
		{"version twice", StateTools, protocol.CmdVersion, StateTools, false},
		{"lib", StateLib, protocol.CmdLib, StateLicense, true},
		{"tools twice", StateLib, protocol.CmdTools, StateLib, false},
		{"feature", StateLicense, protocol.CmdFeature, StateLicense, true},
		{"file", StateLicense, protocol.CmdFile, StateLicense, true},
		{"license", StateLicense, protocol.CmdLicense, StateLicense, true},
		{"returnfeature", StateLicense, protocol.CmdReturnFeature, StateLicense, true},
		{"returnlicense", StateLicense, protocol.CmdReturnLicense, StateLicense, true},
		{"lib again", StateLicense, protocol.CmdLib, StateLicense, false},
		{"filecont from tool", StateLicense, protocol.CmdFileCont, StateLicense, false},
		{"invalid state", State(42), protocol.CmdVersion, State(42), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NextState(tc.state, tc.cmd)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("NextState(%v, %v) = %v, %v; want %v, %v", tc.state, tc.cmd, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestLicenseStateIsSteady(t *testing.T) {
	s := StateVersion
	for _, id := range []protocol.CommandID{protocol.CmdVersion, protocol.CmdTools, protocol.CmdLib} {
		next, ok := NextState(s, id)
		if !ok {
			t.Fatalf("%v rejected in %v", id, s)
		}
		s = next
	}

	for i := 0; i < 3; i++ {
		for _, id := range []protocol.CommandID{protocol.CmdFeature, protocol.CmdFile, protocol.CmdReturnFeature} {
			next, ok := NextState(s, id)
			if !ok || next != StateLicense {
				t.Fatalf("%v in LICENSE = %v, %v", id, next, ok)
			}
			s = next
		}
	}
}

func TestExplainInvalid(t *testing.T) {
	tests := []struct {
		state State
		cmd   protocol.CommandID
		want  string
	}{
		{StateVersion, protocol.CmdFeature,
			"Protocol error: Command FEATURE is not valid in this state, expected command VERSION."},
		{StateTools, protocol.CmdFile,
			"Protocol error: Command FILE is not valid in this state, expected command is one of TOOLS, LIB."},
		{StateLib, protocol.CmdVersion,
			"Protocol error: Command VERSION is not valid in this state, expected command LIB."},
		{StateLicense, protocol.CmdTools,
			"Protocol error: Command TOOLS is not valid in this state, expected command is one of " +
				"FEATURE, FILE, LICENSE, RETURNFEATURE, RETURNLICENSE."},
		{StateLicense, protocol.CmdYes,
			"Protocol error: Command YES can't be sent to the library vendor executable."},
		{StateVersion, protocol.CmdFileCont,
			"Protocol error: Command FILECONT can't be sent to the library vendor executable."},
		{StateTools, protocol.CmdError,
			"Protocol error: Command ERROR can't be sent to the library vendor executable."},
	}

	for _, tc := range tests {
		if got := ExplainInvalid(tc.state, tc.cmd); got != tc.want {
			t.Errorf("ExplainInvalid(%v, %v) =\n  %q\nwant\n  %q", tc.state, tc.cmd, got, tc.want)
		}
	}
}

func TestStateString(t *testing.T) {
	names := map[State]string{
		StateVersion: "VERSION",
		StateTools:   "TOOLS",
		StateLib:     "LIB",
		StateLicense: "LICENSE",
		State(-1):    "INVALID",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", int(s), s, want)
		}
	}
	if State(-1).IsValid() {
		t.Error("State(-1).IsValid() = true")
	}
}
