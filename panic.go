package fieldz

import (
	"fmt"
	"runtime/debug"
)

// recoverFromPanic turns a panic inside an item into a fatal error located
// at the input's path. The stack is kept on the cause for logs; Public never
// exposes it.
func recoverFromPanic(out *Context, err *error, name Name, in Context) {
	r := recover()
	if r == nil {
		return
	}
	*out = in
	fe := InternalServerError(in.path, "panic in %s: %v", name, r)
	fe.Err = fmt.Errorf("%s", debug.Stack())
	fe.Trace = []Name{name}
	*err = fe
}
