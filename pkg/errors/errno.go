package errors

import "syscall"

// errnoTable maps structured error codes to the POSIX errno the filesystem
// boundary should return. Codes absent from the table fall back to EIO.
var errnoTable = map[ErrorCode]syscall.Errno{
	ErrCodeFileNotFound:     syscall.ENOENT,
	ErrCodeObjectNotFound:   syscall.ENOENT,
	ErrCodeBucketNotFound:   syscall.ENOENT,
	ErrCodeDirectoryExists:  syscall.EEXIST,
	ErrCodeBucketExists:     syscall.EEXIST,
	ErrCodeNotDirectory:     syscall.ENOTDIR,
	ErrCodeNotEmpty:         syscall.ENOTEMPTY,
	ErrCodePermissionDenied: syscall.EACCES,
	ErrCodeAccessDenied:     syscall.EACCES,
	ErrCodeUnlockFailed:     syscall.EACCES,
	ErrCodePathInvalid:      syscall.EINVAL,
	ErrCodeValidationFailed: syscall.EINVAL,
	ErrCodeBadEnvelope:      syscall.EIO,
	ErrCodeIntegrityMismatch: syscall.EIO,
	ErrCodeOperationTimeout: syscall.ETIMEDOUT,
	ErrCodeConnectionTimeout: syscall.ETIMEDOUT,
	ErrCodeInvalidState:     syscall.EBUSY,
	ErrCodeComponentStopped: syscall.EBUSY,
}

// Errno returns the negative errno value the FUSE boundary should return for
// err. Non-CoreFSError values and codes with no table entry map to -EIO.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	ofsErr, ok := err.(*CoreFSError)
	if !ok {
		return -int(syscall.EIO)
	}
	if errno, found := errnoTable[ofsErr.Code]; found {
		return -int(errno)
	}
	return -int(syscall.EIO)
}
