package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/repo"
)

// NewTriggerCmd создаёт группу команд для просмотра и управления триггерами.
func NewTriggerCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Просмотр и управление триггерами",
	}
	cmd.AddCommand(
		newTriggerListCmd(depsFn, outputFn),
		newTriggerPauseCmd(depsFn, outputFn),
		newTriggerResumeCmd(depsFn, outputFn),
	)
	return cmd
}

func newTriggerListCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список триггеров",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			matcher := repo.GroupMatcher{Operator: repo.MatchAnything}
			if group != "" {
				matcher = repo.GroupMatcher{Operator: repo.MatchEquals, Value: group}
			}

			ctx := cmd.Context()
			keys, err := deps.Triggers.ListTriggerKeys(ctx, matcher)
			if err != nil {
				return err
			}

			headers := []string{"GROUP", "NAME", "JOB", "STATE", "NEXT_FIRE_TIME"}
			rows := make([][]string, 0, len(keys))
			triggers := make([]*domain.Trigger, 0, len(keys))
			for _, k := range keys {
				t, err := deps.Triggers.RetrieveTrigger(ctx, k)
				if err != nil {
					return err
				}
				if t == nil {
					continue
				}
				triggers = append(triggers, t)
				next := ""
				if t.NextFireTime != nil {
					next = t.NextFireTime.Format("2006-01-02T15:04:05Z")
				}
				rows = append(rows, []string{
					k.Group, k.Name, t.JobKey.String(), string(t.State), next,
				})
			}

			out.Print(headers, rows, triggers)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "фильтр по группе (точное совпадение)")
	return cmd
}

func newTriggerPauseCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var group, name string

	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Приостановить триггер по ключу",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			key := domain.TriggerKey{InstanceName: deps.Cfg.InstanceName, Group: group, Name: name}
			if err := deps.Groups.PauseTrigger(cmd.Context(), key); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("триггер приостановлен: %s.%s", group, name))
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "группа триггера (обязателен)")
	cmd.Flags().StringVar(&name, "name", "", "имя триггера (обязателен)")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newTriggerResumeCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var group, name string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Возобновить триггер по ключу",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			key := domain.TriggerKey{InstanceName: deps.Cfg.InstanceName, Group: group, Name: name}
			if err := deps.Groups.ResumeTrigger(cmd.Context(), key); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("триггер возобновлён: %s.%s", group, name))
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "группа триггера (обязателен)")
	cmd.Flags().StringVar(&name, "name", "", "имя триггера (обязателен)")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("name")
	return cmd
}
