// Package protocol implements the line-oriented command protocol spoken
// between a tool and a library vendor executable (LVE).
//
// Every message starts with a header line of at most MaxLineSize bytes:
//
//	NAME\n                       (simple)
//	NAME <number>\n              (number)
//	NAME <length>\n<bytes>       (length)
//	NAME <number> <length>\n<bytes>
//
// Payload bytes follow the newline with no further delimiter. Command names
// are case-sensitive ASCII. The package provides the fixed command table,
// the grammar that turns a message into a Command, and a stream codec that
// reassembles messages from channel records and writes them back.
package protocol

import (
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxLineSize is the longest accepted header line, excluding the newline.
	MaxLineSize = 1023

	// MaxTokens is the maximum number of tokens in a header line.
	MaxTokens = 3

	// MaxCommandLength is the longest command name in the table.
	MaxCommandLength = 17

	// MinVersion and MaxVersion bound the protocol versions this package speaks.
	MinVersion = 1
	MaxVersion = 1
)

// CommandID identifies an entry of the fixed command table.
type CommandID int

// Command IDs in table order.
const (
	CmdUndefined CommandID = iota
	CmdNotSimple
	CmdTools
	CmdYes
	CmdVersion
	CmdFeature
	CmdFile
	CmdFileCont
	CmdLib
	CmdLicense
	CmdNo
	CmdReturnFeature
	CmdReturnLicense
	CmdToolList
	CmdError

	numCommands
)

type commandInfo struct {
	name string
	form Form
}

var commandTable = [numCommands]commandInfo{
	CmdUndefined:     {"UNDEFINED", FormUndefined},
	CmdNotSimple:     {"NOTSIMPLE", FormSimple},
	CmdTools:         {"TOOLS", FormSimple},
	CmdYes:           {"YES", FormSimple},
	CmdVersion:       {"VERSION", FormNumber},
	CmdFeature:       {"FEATURE", FormLength},
	CmdFile:          {"FILE", FormLength},
	CmdFileCont:      {"FILECONT", FormLength},
	CmdLib:           {"LIB", FormLength},
	CmdLicense:       {"LICENSE", FormLength},
	CmdNo:            {"NO", FormLength},
	CmdReturnFeature: {"RETURNFEATURE", FormLength},
	CmdReturnLicense: {"RETURNLICENSE", FormLength},
	CmdToolList:      {"TOOLLIST", FormLength},
	CmdError:         {"ERROR", FormNumberAndLength},
}

// String returns the wire name of the command.
func (id CommandID) String() string {
	if !id.IsValid() && id != CmdUndefined {
		return "UNKNOWN"
	}
	return commandTable[id].name
}

// Form returns the message form the command must be sent in.
func (id CommandID) Form() Form {
	if !id.IsValid() {
		return FormUndefined
	}
	return commandTable[id].form
}

// IsValid returns true for every defined command except CmdUndefined.
func (id CommandID) IsValid() bool {
	return id > CmdUndefined && id < numCommands
}

// LookupCommand finds a command by its case-sensitive wire name.
func LookupCommand(name string) (CommandID, bool) {
	if name == "" || len(name) > MaxCommandLength {
		return CmdUndefined, false
	}
	for id := CmdUndefined + 1; id < numCommands; id++ {
		if commandTable[id].name == name {
			return id, true
		}
	}
	return CmdUndefined, false
}

// Commands returns all defined command IDs in table order.
func Commands() []CommandID {
	ids := make([]CommandID, 0, numCommands-1)
	for id := CmdUndefined + 1; id < numCommands; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Command is one decoded protocol message.
type Command struct {
	ID CommandID

	// Number is set for number and number-and-length forms.
	Number int64

	// Length is the declared payload length; Data holds exactly Length bytes.
	// Both are zero for forms without payload.
	Length int
	Data   []byte
}

// String renders the command header for logs. Payload bytes are not included.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(c.ID.String())
	form := c.ID.Form()
	if form.HasNumber() {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(c.Number, 10))
	}
	if form.HasLength() {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(c.Length))
	}
	return b.String()
}
