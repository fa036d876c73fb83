package protocol

// Form is the shape of a protocol message line.
type Form int

const (
	// FormUndefined is the zero value and never appears on the wire.
	FormUndefined Form = iota

	// FormSimple is "NAME\n".
	FormSimple

	// FormNumber is "NAME <signed-int>\n".
	FormNumber

	// FormLength is "NAME <length>\n" followed by length raw bytes.
	FormLength

	// FormNumberAndLength is "NAME <signed-int> <length>\n" followed by length raw bytes.
	FormNumberAndLength
)

// Tokens returns the number of tokens a line of this form carries,
// command name included.
func (f Form) Tokens() int {
	switch f {
	case FormSimple:
		return 1
	case FormNumber, FormLength:
		return 2
	case FormNumberAndLength:
		return 3
	default:
		return 0
	}
}

// HasNumber reports whether the form carries a signed number argument.
func (f Form) HasNumber() bool {
	return f == FormNumber || f == FormNumberAndLength
}

// HasLength reports whether the form carries a payload length and payload.
func (f Form) HasLength() bool {
	return f == FormLength || f == FormNumberAndLength
}

// Template returns the human-readable form of a command line for name.
func (f Form) Template(name string) string {
	switch f {
	case FormSimple:
		return name
	case FormNumber:
		return name + " <number>"
	case FormLength:
		return name + " <length>"
	case FormNumberAndLength:
		return name + " <number> <length>"
	default:
		return "[undefined form]"
	}
}

// String returns the form name.
func (f Form) String() string {
	switch f {
	case FormSimple:
		return "Simple"
	case FormNumber:
		return "Number"
	case FormLength:
		return "Length"
	case FormNumberAndLength:
		return "NumberAndLength"
	default:
		return "Undefined"
	}
}

// ErrorCode is the numeric code carried by an ERROR message.
type ErrorCode int64

const (
	ErrorUndefined            ErrorCode = 0
	ErrorCommandNotUnderstood ErrorCode = 1
	ErrorVersionTooLow        ErrorCode = 2
	ErrorLVENotLicensing      ErrorCode = 3
	ErrorFileNotFound         ErrorCode = 4
	ErrorToolNotAllowed       ErrorCode = 5
	ErrorFileIO               ErrorCode = 6
	ErrorLicense              ErrorCode = 7
	ErrorOther                ErrorCode = 8
	ErrorSSL                  ErrorCode = 9

	// ErrorCrypto reports an authentication failure while decrypting a
	// protected file or one of its marker files.
	ErrorCrypto ErrorCode = 10
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrorUndefined:
		return "Undefined"
	case ErrorCommandNotUnderstood:
		return "CommandNotUnderstood"
	case ErrorVersionTooLow:
		return "VersionTooLow"
	case ErrorLVENotLicensing:
		return "LVENotLicensing"
	case ErrorFileNotFound:
		return "FileNotFound"
	case ErrorToolNotAllowed:
		return "ToolNotAllowed"
	case ErrorFileIO:
		return "FileIO"
	case ErrorLicense:
		return "License"
	case ErrorOther:
		return "Other"
	case ErrorSSL:
		return "SSL"
	case ErrorCrypto:
		return "Crypto"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the code is a defined value.
func (c ErrorCode) IsValid() bool {
	return c >= ErrorUndefined && c <= ErrorCrypto
}
