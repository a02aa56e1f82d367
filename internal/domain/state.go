package domain

// TriggerState — состояние триггера в жизненном цикле планировщика.
//
// Источник называет это состояние "Blocked"; здесь оно называется
// Executing, чтобы не путать с распределёнными блокировками.
type TriggerState string

const (
	// TriggerStateWaiting — триггер ожидает своего next_fire_time.
	TriggerStateWaiting TriggerState = "WAITING"

	// TriggerStateAcquired — захвачен инстансом, но ещё не передан воркеру.
	TriggerStateAcquired TriggerState = "ACQUIRED"

	// TriggerStateExecuting — передан воркеру и выполняется.
	TriggerStateExecuting TriggerState = "EXECUTING"

	// TriggerStatePaused — приостановлен напрямую или через группу.
	TriggerStatePaused TriggerState = "PAUSED"

	// TriggerStatePausedBlocked — запрос на паузу пришёл во время исполнения.
	TriggerStatePausedBlocked TriggerState = "PAUSED_BLOCKED"

	// TriggerStateComplete — завершён окончательно, следующих срабатываний нет.
	TriggerStateComplete TriggerState = "COMPLETE"

	// TriggerStateError — последнее исполнение сообщило об ошибке.
	TriggerStateError TriggerState = "ERROR"

	// TriggerStateDeleted — терминальный маркер, строка удаляется из хранилища.
	TriggerStateDeleted TriggerState = "DELETED"
)

// IsTerminal сообщает, что из состояния нет перехода без внешнего
// вмешательства (Complete/Error/Deleted).
func (s TriggerState) IsTerminal() bool {
	switch s {
	case TriggerStateComplete, TriggerStateError, TriggerStateDeleted:
		return true
	default:
		return false
	}
}

// CompletionInstruction — инструкция, которой воркер сообщает об исходе
// сработавшего триггера.
type CompletionInstruction string

const (
	// CompletionNoop — вернуть триггер в Waiting (поведение по умолчанию).
	CompletionNoop CompletionInstruction = ""

	// CompletionDelete — удалить строку триггера.
	CompletionDelete CompletionInstruction = "DELETE"

	// CompletionSetComplete — перевести триггер в Complete.
	CompletionSetComplete CompletionInstruction = "SET_COMPLETE"

	// CompletionSetError — перевести триггер в Error.
	CompletionSetError CompletionInstruction = "SET_ERROR"

	// CompletionSetAllGroupComplete — перевести в Complete все триггеры
	// группы job'а.
	CompletionSetAllGroupComplete CompletionInstruction = "SET_ALL_GROUP_COMPLETE"
)

// MisfireInstructionIgnore отключает обработку misfire для триггера.
const MisfireInstructionIgnore = -1
