// Package traffic provides identity and background-task bookkeeping for
// objects that take part in the traffic simulation.
package traffic

import (
	"strconv"
	"sync/atomic"
)

var idCounter atomic.Int64

// Object identifies a traffic participant. It is meant to be embedded.
type Object struct {
	id   int
	kind string
}

// NewObject allocates the next process-wide identity for the given kind.
func NewObject(kind string) Object {
	return Object{
		id:   int(idCounter.Add(1)),
		kind: kind,
	}
}

// ID returns the object identifier.
func (o Object) ID() int {
	return o.id
}

// Kind returns the object kind (e.g. "traffic light").
func (o Object) Kind() string {
	return o.kind
}

// String returns a label for diagnostics.
func (o Object) String() string {
	return o.kind + " #" + strconv.Itoa(o.id)
}
