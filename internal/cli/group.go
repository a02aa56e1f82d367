package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewGroupCmd создаёт группу команд для управления паузой групп триггеров.
func NewGroupCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Пауза и возобновление групп триггеров",
	}
	cmd.AddCommand(
		newGroupPauseCmd(depsFn, outputFn),
		newGroupResumeCmd(depsFn, outputFn),
		newGroupPauseAllCmd(depsFn, outputFn),
		newGroupResumeAllCmd(depsFn, outputFn),
	)
	return cmd
}

func newGroupPauseCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause GROUP",
		Short: "Приостановить все триггеры группы",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			if err := deps.Groups.PauseTriggerGroup(cmd.Context(), deps.Cfg.InstanceName, args[0]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("группа приостановлена: %s", args[0]))
			return nil
		},
	}
}

func newGroupResumeCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume GROUP",
		Short: "Возобновить все триггеры группы",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			if err := deps.Groups.ResumeTriggerGroup(cmd.Context(), deps.Cfg.InstanceName, args[0]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("группа возобновлена: %s", args[0]))
			return nil
		},
	}
}

func newGroupPauseAllCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause-all",
		Short: "Приостановить все группы, включая будущие",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			if err := deps.Groups.PauseAll(cmd.Context(), deps.Cfg.InstanceName); err != nil {
				return err
			}
			out.Success("все группы приостановлены")
			return nil
		},
	}
}

func newGroupResumeAllCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume-all",
		Short: "Возобновить все приостановленные группы",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			if err := deps.Groups.ResumeAll(cmd.Context(), deps.Cfg.InstanceName); err != nil {
				return err
			}
			out.Success("все группы возобновлены")
			return nil
		},
	}
}
