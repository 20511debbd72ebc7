// Package apperr normaliza os erros do core numa taxonomia fechada.
// Todo erro que cruza a fronteira com o colaborador HTTP sai daqui tipado.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown           Kind = ""
	KindValidation        Kind = "VALIDATION"         // rejeitado localmente, nunca vai pra rede
	KindNetwork           Kind = "NETWORK"            // falha transitória de fetch/push
	KindFeedUnavailable   Kind = "FEED_UNAVAILABLE"   // sem cotação conhecida
	KindPartialSubmission Kind = "PARTIAL_SUBMISSION" // submissão interrompida
	KindInvalidState      Kind = "INVALID_STATE"      // operação fora do estado OPEN
	KindNotFound          Kind = "NOT_FOUND"
)

// Error é o erro tipado do core.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, msg string) *Error { return New(KindValidation, op, msg) }

func Network(op string, err error) *Error { return Wrap(KindNetwork, op, err) }

// KindOf devolve o Kind do primeiro *Error na cadeia.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reporta se err carrega o kind informado.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
