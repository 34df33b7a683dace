package smb2

import "fmt"

// Command is the SMB2 command code.
type Command uint16

// Commands carried by the synchronous header.
const (
	CommandNegotiateProtocol Command = iota
	CommandSessionSetup
	CommandSessionLogoff
	CommandTreeConnect
	CommandTreeDisconnect
	CommandCreate
	CommandClose
	CommandFlush
	CommandRead
	CommandWrite
	CommandLock
	CommandIoctl
	CommandCancel
	CommandKeepAlive
	CommandFind
	CommandNotify
	CommandGetInfo
	CommandSetInfo
	CommandBreak

	commandCount
)

var commandNames = [commandCount]string{
	CommandNegotiateProtocol: "NegotiateProtocol",
	CommandSessionSetup:      "SessionSetup",
	CommandSessionLogoff:     "SessionLogoff",
	CommandTreeConnect:       "TreeConnect",
	CommandTreeDisconnect:    "TreeDisconnect",
	CommandCreate:            "Create",
	CommandClose:             "Close",
	CommandFlush:             "Flush",
	CommandRead:              "Read",
	CommandWrite:             "Write",
	CommandLock:              "Lock",
	CommandIoctl:             "Ioctl",
	CommandCancel:            "Cancel",
	CommandKeepAlive:         "KeepAlive",
	CommandFind:              "Find",
	CommandNotify:            "Notify",
	CommandGetInfo:           "GetInfo",
	CommandSetInfo:           "SetInfo",
	CommandBreak:             "Break",
}

// ParseCommand maps a wire value onto a known command.
func ParseCommand(v uint16) (Command, error) {
	if v >= uint16(commandCount) {
		return 0, fmt.Errorf("%w: 0x%04x", ErrInvalidOpcode, v)
	}
	return Command(v), nil
}

// Valid reports whether c is one of the defined commands.
func (c Command) Valid() bool { return c < commandCount }

func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Command(0x%04x)", uint16(c))
	}
	return commandNames[c]
}

// MarshalText renders the command name.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
