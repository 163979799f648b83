package core

import "github.com/google/uuid"

// ID identifies a pipeline run or trace element.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

func (i ID) String() string {
	return string(i)
}
