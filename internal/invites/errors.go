package invites

import (
	"errors"
	"fmt"
	"strings"
)

// Kind — класс ошибки приглашений; по нему выбирается HTTP-статус.
type Kind string

const (
	KindMissingToken         Kind = "MissingToken"
	KindInvalidToken         Kind = "InvalidToken"
	KindInviteExpired        Kind = "InviteExpired"
	KindUnauthorizedInviter  Kind = "UnauthorizedInviter"
	KindReconciliationFailed Kind = "ReconciliationFailed"
	KindBulkInvite           Kind = "BulkInviteError"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindInternal             Kind = "Internal"
)

type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf возвращает Kind из цепочки ошибок или "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// EmailFailure — почему конкретному адресу не ушло приглашение.
type EmailFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// BulkError собирает отказы по отдельным адресам; остальные адреса обработаны.
type BulkError struct {
	Failures []EmailFailure
}

func (b *BulkError) Error() string {
	parts := make([]string, 0, len(b.Failures))
	for _, f := range b.Failures {
		parts = append(parts, f.Email+": "+f.Reason)
	}
	return strings.Join(parts, "; ")
}
