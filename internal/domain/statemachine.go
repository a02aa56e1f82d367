package domain

import "fmt"

// Event — событие, запрашивающее переход состояния триггера.
type Event string

const (
	EventAcquire        Event = "ACQUIRE"
	EventRelease        Event = "RELEASE"
	EventFire           Event = "FIRE"
	EventPause          Event = "PAUSE"
	EventResume         Event = "RESUME"
	EventResetFromError Event = "RESET_FROM_ERROR"
)

// ErrIllegalTransition — событие недопустимо для текущего состояния.
type ErrIllegalTransition struct {
	From  TriggerState
	Event Event
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition: event %s from state %s", e.Event, e.From)
}

// Transition — таблица переходов для событий, не требующих
// дополнительного контекста (acquire/release/fire/pause/resume/resetFromError).
//
// Сохранение нового триггера, его завершение и пересчёт misfire требуют
// контекста (job/group/calendar), который таблица ниже выразить не может,
// поэтому они вынесены в отдельные функции. Transition остаётся чистой
// парой "текущее состояние x событие -> новое состояние".
func Transition(current TriggerState, event Event) (TriggerState, error) {
	switch event {
	case EventAcquire:
		if current == TriggerStateWaiting {
			return TriggerStateAcquired, nil
		}
	case EventRelease:
		if current == TriggerStateAcquired {
			return TriggerStateWaiting, nil
		}
	case EventFire:
		if current == TriggerStateAcquired {
			return TriggerStateExecuting, nil
		}
	case EventPause:
		switch current {
		case TriggerStateWaiting, TriggerStateAcquired:
			return TriggerStatePaused, nil
		case TriggerStateExecuting:
			return TriggerStatePausedBlocked, nil
		}
	case EventResume:
		switch current {
		case TriggerStatePaused:
			return TriggerStateWaiting, nil
		case TriggerStatePausedBlocked:
			// Возвращаем в Executing, как при резюме одиночного триггера,
			// а не в Waiting, как при групповом резюме в источнике.
			return TriggerStateExecuting, nil
		}
	case EventResetFromError:
		if current == TriggerStateError {
			return TriggerStateWaiting, nil
		}
	}
	return "", &ErrIllegalTransition{From: current, Event: event}
}

// InitialStoreState вычисляет состояние, в котором должен оказаться
// только что сохранённый (или пересозданный через replace=true) триггер:
//
//   - Waiting по умолчанию.
//   - Paused, если группа триггера в множестве приостановленных, либо
//     установлен зарезервированный маркер <ALL_PAUSED>.
//   - PausedBlocked, если job запрещает конкурентное исполнение и сейчас
//     Executing (другой триггер того же job уже исполняется).
func InitialStoreState(groupPaused, allGroupsPaused, jobConcurrencyBlocked bool) TriggerState {
	if groupPaused || allGroupsPaused {
		return TriggerStatePaused
	}
	if jobConcurrencyBlocked {
		return TriggerStatePausedBlocked
	}
	return TriggerStateWaiting
}

// Complete вычисляет итоговое состояние по инструкции завершения,
// которую сообщает воркер. ok = false, если текущее состояние не
// допускает завершения (триггер уже не Executing).
func Complete(current TriggerState, instruction CompletionInstruction) (next TriggerState, deleted bool, ok bool) {
	if instruction == CompletionSetAllGroupComplete {
		// Применяется ко всем триггерам группы независимо от их текущего
		// состояния; разворачивание по триггерам делает вызывающий код.
		return TriggerStateComplete, false, true
	}
	if current != TriggerStateExecuting {
		return "", false, false
	}
	switch instruction {
	case CompletionDelete:
		return TriggerStateDeleted, true, true
	case CompletionSetComplete:
		return TriggerStateComplete, false, true
	case CompletionSetError:
		return TriggerStateError, false, true
	case CompletionNoop:
		return TriggerStateWaiting, false, true
	default:
		return TriggerStateWaiting, false, true
	}
}

// Misfire вычисляет состояние после пересчёта пропущенного срабатывания.
// hasNext — результат UpdateAfterMisfire у recurrence: false означает,
// что следующего срабатывания больше нет и триггер финализируется.
//
// Paused/PausedBlocked сохраняют своё состояние — пересчёт misfire
// обновляет next_fire_time, но никогда не должен снимать паузу.
func Misfire(current TriggerState, hasNext bool) TriggerState {
	if current == TriggerStatePaused || current == TriggerStatePausedBlocked {
		return current
	}
	if !hasNext {
		return TriggerStateComplete
	}
	return TriggerStateWaiting
}
