package ledger

// Verifier decides whether a program account may spend in group at index. It replaces a key
// signature for accounts whose authority is a program.
type Verifier interface {
	Authorize(group []Operation, index int) error
}

// ProgramLoader decodes program bytes into a Verifier.
type ProgramLoader func(program []byte) (Verifier, error)

// ApprovalProgram is the contract logic of an application. Approve validates the call and
// mutates call.Global and call.Local in place; a non-nil error aborts the bundle.
type ApprovalProgram interface {
	Hash() Digest
	Approve(call *Call) error
}

type Call struct {
	AppID        AppID
	Creator      Address
	Sender       Address
	OnCompletion OnCompletion
	Args         [][]byte
	Round        Round
	Group        []Operation
	Index        int
	Creating     bool

	// Global and Local are working copies. Local is nil when the sender has not opted in.
	Global KeyValue
	Local  KeyValue
}
