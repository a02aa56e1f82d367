package domain

// JobKey идентифицирует job по (instance_name, group, name) — составной
// ключ, который несёт на себе каждая сущность.
type JobKey struct {
	InstanceName string `json:"instance_name"`
	Group        string `json:"group"`
	Name         string `json:"name"`
}

// String рендерит ключ так же, как TriggerKey — для логов и ключей
// ошибок. fired_instance_id строится не через String, а через
// FiredInstanceIDPrefix.
func (k JobKey) String() string {
	return k.Group + "." + k.Name
}

// Job — единица работы, на которую ссылаются один или несколько триггеров.
//
// Job создаётся приложением через StoreJob и не исполняется хранилищем —
// исполнение делегировано внешнему worker pool'у, который резолвит
// JobType в исполняемый код.
type Job struct {
	Key JobKey `json:"key"`

	// Description — свободный текст.
	Description string `json:"description,omitempty"`

	// JobType — непрозрачный символ, который резолвит внешний worker pool.
	JobType string `json:"job_type"`

	// Durable — если false, job удаляется, когда у неё не остаётся триггеров.
	Durable bool `json:"durable"`

	// PersistDataAfterExecution — если true, per-trigger data map
	// записывается обратно в job по завершении исполнения.
	PersistDataAfterExecution bool `json:"persist_data_after_execution"`

	// ConcurrentExecutionDisallowed — если true, для job допустим только
	// один одновременно исполняющийся триггер.
	ConcurrentExecutionDisallowed bool `json:"concurrent_execution_disallowed"`

	// RequestsRecovery — если true, прерванное исполнение пересоздаётся
	// как recovery trigger при старте инстанса.
	RequestsRecovery bool `json:"requests_recovery"`

	// Data — произвольная key-value карта, доступная исполнителю.
	Data map[string]any `json:"data,omitempty"`
}
