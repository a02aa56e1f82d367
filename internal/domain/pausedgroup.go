package domain

// AllGroupsPaused — зарезервированное имя группы, отмечающее "будущие
// группы приостановлены по умолчанию".
const AllGroupsPaused = "<ALL_PAUSED>"

// PausedTriggerGroup — наличие строки (instance_name, group) означает,
// что группа приостановлена.
type PausedTriggerGroup struct {
	InstanceName string `json:"instance_name"`
	Group        string `json:"group"`
}
