package binding

// State tracks how far a binding site has been resolved.
type State uint8

const (
	Unresolved State = iota
	TypeHandleResolved
	FunctionHandleResolved
	OffsetResolved
	SizeResolved
	Ready
)

var stateNames = [...]string{
	Unresolved:             "unresolved",
	TypeHandleResolved:     "type_handle_resolved",
	FunctionHandleResolved: "function_handle_resolved",
	OffsetResolved:         "offset_resolved",
	SizeResolved:           "size_resolved",
	Ready:                  "ready",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
