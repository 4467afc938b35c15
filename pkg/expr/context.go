package expr

import "github.com/cuemby/queryrt/pkg/vartable"

// Context supplies the variable table(s) an expression tree is evaluated
// against. Host is optional — expressions referencing host variables
// (prepared-statement placeholders) require it; a nil Host makes any
// host-variable reference evaluate to an error.
type Context struct {
	Vars *vartable.Table
	Host *vartable.Table
}
