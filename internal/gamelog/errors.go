package gamelog

import (
	"errors"
	"fmt"
)

// ErrBadLog is the root of every error the engine returns for bad input.
var ErrBadLog = errors.New("bad gamelog")

var (
	ErrInvalidHTML = fmt.Errorf("%w: data is not valid HTML", ErrBadLog)
	ErrNotLog      = fmt.Errorf("%w: input is not a gamelog", ErrBadLog)
)

// UnsupportedRoleError reports a role name missing from the role table.
type UnsupportedRoleError struct {
	Name string
}

func (e *UnsupportedRoleError) Error() string {
	return fmt.Sprintf("unsupported role %q", e.Name)
}

func (e *UnsupportedRoleError) Unwrap() error {
	return ErrBadLog
}

// btos2Roles are roles from the other game variant, which is not supported.
var btos2Roles = map[string]bool{
	"Pacifist":   true,
	"Banshee":    true,
	"Warlock":    true,
	"Inquisitor": true,
	"Auditor":    true,
	"Judge":      true,
	"Starspawn":  true,
	"Jackal":     true,
}

// Describe turns an engine error into a message fit for the uploader.
func Describe(err error) string {
	var roleErr *UnsupportedRoleError
	switch {
	case errors.Is(err, ErrInvalidHTML):
		return "File is not valid HTML"
	case errors.Is(err, ErrNotLog):
		return "Does not appear to be a gamelog"
	case errors.As(err, &roleErr):
		msg := fmt.Sprintf("Unknown role %q", roleErr.Name)
		if btos2Roles[roleErr.Name] {
			msg += " (BToS2 is not supported)"
		}
		return msg
	default:
		return err.Error()
	}
}
