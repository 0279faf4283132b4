package direntry

import "errors"

// ErrInvalidName is returned by ParseName when a name violates the fixed
// 8.3 scheme. The root bbfs package maps it onto Kind InvalidName.
var ErrInvalidName = errors.New("direntry: name violates 8.3 naming scheme")

// ErrNoSpace is returned by Table.Create when no directory slot is free.
var ErrNoSpace = errors.New("direntry: no free directory entry")
