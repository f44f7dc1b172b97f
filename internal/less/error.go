// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import "fmt"

// Position is a location in a source file. Line and Column are 1-based.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is a compilation error with the location it was found at.
type Error struct {
	Position
	Message string
}

func (e *Error) Error() string {
	return e.Position.String() + ": " + e.Message
}

func errorf(pos Position, format string, args ...any) *Error {
	return &Error{Position: pos, Message: fmt.Sprintf(format, args...)}
}
