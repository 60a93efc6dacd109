package jit

import "errors"

// Failure taxonomy. None of these ever escape Scan or Refresh, they are
// recorded in the memo table and logged.
var (
	// ErrTriggerMiss is returned for tokens without "-[". Such tokens are not
	// utility tokens at all and are silently ignored.
	ErrTriggerMiss = errors.New("not a utility token")
	// ErrGrammarMismatch is returned for tokens which contain "-[" but do not
	// match the token grammar.
	ErrGrammarMismatch = errors.New("token does not match utility grammar")
	// ErrUnknownProperty is returned when property key cannot be resolved.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrSinkRejected is returned when stylesheet refuses generated rule text.
	ErrSinkRejected = errors.New("rule rejected by stylesheet")
)
