package efi

import "fmt"

// Status is the platform status domain. It doubles as an error so callers can
// pass a chain-loaded program's exit status through unchanged.
type Status int

const (
	Success Status = iota
	LoadError
	InvalidParameter
	Unsupported
	BadBufferSize
	BufferTooSmall
	NotReady
	DeviceError
	WriteProtected
	OutOfResources
	NotFound
	AccessDenied
	NoResponse
	NoMapping
	Timeout
	Aborted
	SecurityViolation
)

var statusNames = map[Status]string{
	Success:           "success",
	LoadError:         "load error",
	InvalidParameter:  "invalid parameter",
	Unsupported:       "unsupported",
	BadBufferSize:     "bad buffer size",
	BufferTooSmall:    "buffer too small",
	NotReady:          "not ready",
	DeviceError:       "device error",
	WriteProtected:    "write protected",
	OutOfResources:    "out of resources",
	NotFound:          "not found",
	AccessDenied:      "access denied",
	NoResponse:        "no response",
	NoMapping:         "no mapping",
	Timeout:           "timeout",
	Aborted:           "aborted",
	SecurityViolation: "security violation",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) Error() string {
	return "efi: " + s.String()
}

// IsError reports whether s is anything other than Success.
func (s Status) IsError() bool {
	return s != Success
}
