package storagemgr

import (
	"context"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/mutex"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/storeerr"
)

// JobManager реализует работу с job'ами: StoreJob/RemoveJob идут под
// TriggerAccess, а операции чтения — прямые обращения к репозиторию,
// поскольку чтение не требует блокировки.
type JobManager struct {
	cfg Config
}

func NewJobManager(cfg Config) *JobManager {
	return &JobManager{cfg: cfg}
}

// StoreJob добавляет новый job либо заменяет существующий, если
// replace=true. При replace=false и уже занятом ключе возвращает
// AlreadyExists.
func (m *JobManager) StoreJob(ctx context.Context, job *domain.Job, replace bool) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		if replace {
			return m.cfg.Jobs.Upsert(ctx, job)
		}
		return m.cfg.Jobs.Insert(ctx, job)
	})
}

// RemoveJob удаляет job и все триггеры, которые на него ссылаются.
func (m *JobManager) RemoveJob(ctx context.Context, key domain.JobKey) error {
	return mutex.WithLock(ctx, m.cfg.triggerAccess(), func(ctx context.Context) error {
		triggers, err := m.cfg.Triggers.ListKeysByJobKey(ctx, key)
		if err != nil {
			return err
		}
		for _, tk := range triggers {
			if err := m.cfg.Triggers.Delete(ctx, tk); err != nil {
				return err
			}
		}
		return m.cfg.Jobs.Delete(ctx, key)
	})
}

func (m *JobManager) RetrieveJob(ctx context.Context, key domain.JobKey) (*domain.Job, error) {
	return m.cfg.Jobs.Get(ctx, key)
}

func (m *JobManager) JobExists(ctx context.Context, key domain.JobKey) (bool, error) {
	return m.cfg.Jobs.Exists(ctx, key)
}

func (m *JobManager) CountJobs(ctx context.Context) (int, error) {
	return m.cfg.Jobs.Count(ctx, m.cfg.InstanceName)
}

func (m *JobManager) ListJobKeys(ctx context.Context, matcher repo.GroupMatcher) ([]domain.JobKey, error) {
	return m.cfg.Jobs.ListKeysByGroupMatcher(ctx, m.cfg.InstanceName, matcher)
}

func (m *JobManager) ListJobGroups(ctx context.Context) ([]string, error) {
	return m.cfg.Jobs.ListGroups(ctx, m.cfg.InstanceName)
}

// IsJobGroupPaused намеренно не реализован: пауза отслеживается по
// группам триггеров, а не по группам job'ов, так что у этого запроса
// нет осмысленного ответа.
func (m *JobManager) IsJobGroupPaused(ctx context.Context, group string) (bool, error) {
	return false, storeerr.NotImplementedErr("JobManager.IsJobGroupPaused")
}
