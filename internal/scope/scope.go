// Package scope names the range variables of any/all lambdas.
package scope

import "strconv"

// MaxVariables is the number of distinct range variable names; allocation
// wraps around after x9.
const MaxVariables = 9

// Allocator hands out range variable names x1..x9 cyclically. One allocator
// is owned by a single top-level format call and shared by the sub-contexts
// of that call, so nested lambdas get distinct names and concurrent calls
// never share state.
//
// An Allocator is not safe for concurrent use.
type Allocator struct {
	next int
}

// Next returns the next range variable name.
func (a *Allocator) Next() string {
	name := "x" + strconv.Itoa(a.next%MaxVariables+1)
	a.next++
	return name
}

// Allocated returns how many names have been handed out.
func (a *Allocator) Allocated() int {
	return a.next
}

// Qualify prefixes path with the range variable in scope. An empty scope
// returns path unchanged.
func Qualify(scope, path string) string {
	if scope == "" || path == "" {
		return path
	}
	return scope + "/" + path
}
