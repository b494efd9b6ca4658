package protocol

import "fmt"

// errnoEntry pairs the symbolic errno name with its message text.
type errnoEntry struct {
	name string
	text string
}

// errnoTable maps the errno-style codes devices report to their
// conventional names and messages. The set mirrors the platform errno
// values register firmware actually uses; codes outside the table
// render as "Unknown Error[N]".
var errnoTable = map[int]errnoEntry{
	1:   {"EPERM", "Operation not permitted"},
	2:   {"ENOENT", "No such file or directory"},
	5:   {"EIO", "Input/output error"},
	6:   {"ENXIO", "No such device or address"},
	11:  {"EAGAIN", "Resource temporarily unavailable"},
	12:  {"ENOMEM", "Cannot allocate memory"},
	13:  {"EACCES", "Permission denied"},
	14:  {"EFAULT", "Bad address"},
	16:  {"EBUSY", "Device or resource busy"},
	19:  {"ENODEV", "No such device"},
	22:  {"EINVAL", "Invalid argument"},
	28:  {"ENOSPC", "No space left on device"},
	34:  {"ERANGE", "Numerical result out of range"},
	61:  {"ENODATA", "No data available"},
	62:  {"ETIME", "Timer expired"},
	70:  {"ECOMM", "Communication error on send"},
	71:  {"EPROTO", "Protocol error"},
	74:  {"EBADMSG", "Bad message"},
	75:  {"EOVERFLOW", "Value too large for defined data type"},
	90:  {"EMSGSIZE", "Message too long"},
	92:  {"ENOPROTOOPT", "Protocol not available"},
	93:  {"EPROTONOSUPPORT", "Protocol not supported"},
	95:  {"EOPNOTSUPP", "Operation not supported"},
	99:  {"EADDRNOTAVAIL", "Cannot assign requested address"},
	110: {"ETIMEDOUT", "Connection timed out"},
}

// ErrnoMessage renders a device error code as a human-readable message,
// e.g. "EINVAL-Invalid argument [22]". Unknown codes produce
// "Unknown Error[N]".
func ErrnoMessage(code int) string {
	e, ok := errnoTable[code]
	if !ok {
		return fmt.Sprintf("Unknown Error[%d]", code)
	}
	return fmt.Sprintf("%s-%s [%d]", e.name, e.text, code)
}

// DeviceError is a nonzero result code reported by the device.
type DeviceError struct {
	// Code is the errno-style error code.
	Code int
}

// Error returns the errno-derived message for the code.
func (e *DeviceError) Error() string {
	return ErrnoMessage(e.Code)
}
