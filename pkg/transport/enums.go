package transport

// ChannelType identifies how a Channel is carried.
type ChannelType int

const (
	// ChannelTypeUnknown is the zero value for an unknown channel.
	ChannelTypeUnknown ChannelType = iota
	// ChannelTypePlain is an unencrypted net.Conn, only for trusted local use.
	ChannelTypePlain
	// ChannelTypeTLS is a TLS session with a client-certificate handshake.
	ChannelTypeTLS
	// ChannelTypePipe is an in-memory record pipe.
	ChannelTypePipe
)

// String returns the string representation of the channel type.
func (t ChannelType) String() string {
	switch t {
	case ChannelTypePlain:
		return "Plain"
	case ChannelTypeTLS:
		return "TLS"
	case ChannelTypePipe:
		return "Pipe"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the channel type is a known valid type.
func (t ChannelType) IsValid() bool {
	return t >= ChannelTypePlain && t <= ChannelTypePipe
}
