// Package repo содержит типизированные репозитории для каждой сущности —
// слой между менеджерами хранения/срабатывания и пулом соединений.
package repo

import (
	"fmt"
	"strings"
)

// MatchOperator называет один из пяти операторов сравнения по группе.
type MatchOperator string

const (
	MatchEquals     MatchOperator = "EQUALS"
	MatchStartsWith MatchOperator = "STARTS_WITH"
	MatchEndsWith   MatchOperator = "ENDS_WITH"
	MatchContains   MatchOperator = "CONTAINS"
	MatchAnything   MatchOperator = "ANYTHING"
)

// GroupMatcher выбирает сущности по полю группы.
type GroupMatcher struct {
	Operator MatchOperator
	Value    string
}

// SQLPattern рендерит matcher как паттерн Postgres LIKE, избегая полного
// сканирования таблицы через вычисление regex на стороне Go для типичных
// случаев точного совпадения/префикса/суффикса/вхождения.
func (m GroupMatcher) SQLPattern() (string, error) {
	escaped := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(m.Value)
	switch m.Operator {
	case MatchEquals:
		return escaped, nil
	case MatchStartsWith:
		return escaped + "%", nil
	case MatchEndsWith:
		return "%" + escaped, nil
	case MatchContains:
		return "%" + escaped + "%", nil
	case MatchAnything:
		return "%", nil
	default:
		return "", fmt.Errorf("groupmatcher: unknown operator %q", m.Operator)
	}
}
