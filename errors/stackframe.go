package errors

import (
	"fmt"
	"runtime"
)

// A StackFrame contains all necessary information about one line in a
// callstack.
type StackFrame struct {
	File           string
	LineNumber     int
	Name           string
	Package        string
	ProgramCounter uintptr
}

// NewStackFrame populates a stack frame object from the program counter.
func NewStackFrame(pc uintptr) (frame StackFrame) {
	frame = StackFrame{ProgramCounter: pc}
	if frame.Func() == nil {
		return
	}
	frame.Package, frame.Name = packageAndName(frame.Func())

	// pc -1 because the program counters we use are usually return addresses,
	// and we want to show the line that corresponds to the function call.
	frame.File, frame.LineNumber = frame.Func().FileLine(pc - 1)
	return
}

// Func returns the function that contained this frame.
func (frame *StackFrame) Func() *runtime.Func {
	if frame.ProgramCounter == 0 {
		return nil
	}
	return runtime.FuncForPC(frame.ProgramCounter)
}

// String returns the stackframe formatted in the same way as go does in
// runtime/debug.Stack().
func (frame *StackFrame) String() string {
	return fmt.Sprintf("%s:%d (0x%x)\n\t%s\n", frame.File, frame.LineNumber, frame.ProgramCounter, frame.Name)
}

func packageAndName(fn *runtime.Func) (string, string) {
	name := fn.Name()
	pkg := ""

	// The name includes the path of the package, e.g. "net/http.(*Request).Write".
	// We only want the last element of the path and the function name.
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			name = name[i+1:]
			break
		}
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			pkg = name[:i]
			name = name[i+1:]
			break
		}
	}
	return pkg, name
}
