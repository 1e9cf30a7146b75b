// Package transfer defines the Transfer Driver abstraction (spec.md
// §4.G): the polymorphic capability for moving an envelope off-device
// or into long-term storage, implemented by the LTB driver and the
// Publisher driver.
package transfer

import "io"

// RemoteResource names where a Publisher-backed driver sends to. The
// wire protocol client that actually performs address/port/path
// delivery is an external collaborator (spec.md §1); this struct is
// the opaque handle the core passes it.
type RemoteResource struct {
	Address string
	Port    int
	Path    string
}

// Job is one unit of transfer work. File is the data to move (read
// for a send, write for a receive); the caller allocates the Job and
// owns File until ownership transfers to the driver on a successful
// TrySend/Send/Recv.
type Job struct {
	File     io.ReadWriteCloser
	Callback func(error)
}

// Driver is the abstract capability every transfer backend implements.
// TrySend is asynchronous: a non-nil return means the job was not
// accepted (WouldBlock: mailbox full; NoSuchProcess: worker gone) and
// Callback will never fire; a nil return means Callback will fire
// exactly once with the terminal status. Send is synchronous: it
// blocks until the job completes and returns that same status
// directly (and additionally invokes Callback, once, iff it
// succeeds — spec.md §3 "Transfer Job").
type Driver interface {
	TrySend(job *Job) error
	Send(job *Job) error
	Recv(job *Job) error
	Delete() error
}
