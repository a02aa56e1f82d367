// Package storeerr определяет небольшую таксономию ошибок, через
// которую отчитывается каждый компонент модуля, вместо отдельных
// sentinel-ошибок в каждом пакете.
package storeerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind классифицирует StoreError для вызывающих, которым нужно
// различать причину сбоя.
type Kind string

const (
	// AlreadyExists — сохранённая сущность конфликтует с запросом без replace.
	AlreadyExists Kind = "ALREADY_EXISTS"
	// Integrity — не выполнено ссылочное условие (отсутствующий job,
	// на календарь всё ещё ссылаются, несовпадающий job key при replace).
	Integrity Kind = "INTEGRITY"
	// Persistence — сбой базы данных, не устранённый повтором.
	Persistence Kind = "PERSISTENCE"
	// Cancelled — кооперативная отмена через context.
	Cancelled Kind = "CANCELLED"
	// NotImplemented — зарезервировано для запросов интроспекции паузы
	// групп, которые в принципе не реализуются.
	NotImplemented Kind = "NOT_IMPLEMENTED"
)

// StoreError несёт Kind вместе с обычной цепочкой сообщение/причина.
type StoreError struct {
	Kind Kind
	Op   string
	Key  string
	err  error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Key, e.err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
}

func (e *StoreError) Unwrap() error { return e.err }

// Is позволяет errors.Is(err, storeerr.AlreadyExists) работать,
// сравнивая Kind, когда target сам является *StoreError с заданным
// только Kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, op, key string, cause error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Key: key, err: cause}
}

func AlreadyExistsErr(op, key string) error {
	return newErr(AlreadyExists, op, key, errors.New("already exists"))
}

func IntegrityErr(op, key, reason string) error {
	return newErr(Integrity, op, key, errors.New(reason))
}

// PersistenceErr оборачивает cause стек-трейсом через cockroachdb/errors,
// чтобы оператор получил полезный трейс даже из ошибки драйвера, которая
// иначе была бы голым сообщением pgx.
func PersistenceErr(op, key string, cause error) error {
	return newErr(Persistence, op, key, errors.Wrap(cause, "persistence failure"))
}

func CancelledErr(op string, cause error) error {
	return newErr(Cancelled, op, "", cause)
}

func NotImplementedErr(op string) error {
	return newErr(NotImplemented, op, "", errors.New("not implemented"))
}

// KindOf извлекает Kind из err, если это (или обёрнутая) *StoreError.
func KindOf(err error) (Kind, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
