// Package config связывает настройки хранилища триггеров: строку
// подключения, идентичность инстанса и операционные тайминги sweeper'а.
// Часть полей неизменна после Initialize, часть можно перечитать на лету
// через Watch.
package config

import "time"

// Config — снимок всех настроек хранилища триггеров.
type Config struct {
	// Неизменные после Initialize — перечитываются только перезапуском
	// процесса.
	ConnectionString string
	CollectionPrefix string
	UseTLS           bool
	InstanceID       string
	InstanceName     string

	// Операционные — безопасны для горячей перезагрузки через Watch.
	MisfireThreshold                 time.Duration
	DBRetryInterval                  time.Duration
	MaxMisfiresPerPass               int
	RetryableActionErrorLogThreshold int
}

// Reloadable возвращает копию c с операционными полями, взятыми из upd —
// неизменные поля остаются как в c. Используется Watch при публикации
// новой конфигурации подписчикам.
func (c Config) Reloadable(upd Config) Config {
	c.MisfireThreshold = upd.MisfireThreshold
	c.DBRetryInterval = upd.DBRetryInterval
	c.MaxMisfiresPerPass = upd.MaxMisfiresPerPass
	c.RetryableActionErrorLogThreshold = upd.RetryableActionErrorLogThreshold
	return c
}
