package jit

import (
	"fmt"

	"go.uber.org/zap"
)

// StyleSheet is an ordered, insert-only list of rules which may refuse
// malformed rule text.
type StyleSheet interface {
	InsertRule(text string, index int) (int, error)
	Len() int
}

type sink struct {
	sheet StyleSheet
	log   *zap.Logger
}

// insert appends rule text to the end of the sheet. Failure is logged and
// returned to be memoized, it never stops the pipeline.
func (s *sink) insert(token, text string) error {
	if _, err := s.sheet.InsertRule(text, s.sheet.Len()); err != nil {
		s.log.Error("Unable to insert compiled rule", zap.String("token", token), zap.String("rule", text), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSinkRejected, err)
	}
	return nil
}
