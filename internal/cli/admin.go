package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewAdminCmd создаёт группу административных команд, не входящих в
// штатный жизненный цикл инстанса.
func NewAdminCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Административные операции",
	}
	cmd.AddCommand(newAdminClearAllCmd(depsFn, outputFn))
	return cmd
}

func newAdminClearAllCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear-all-scheduling-data",
		Short: "Удалить все данные текущего instance_name (необратимо)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("отказ: требуется флаг --yes для необратимого удаления")
			}

			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			if err := deps.Coordinator.ClearAllSchedulingData(cmd.Context()); err != nil {
				return err
			}
			out.Success("все данные инстанса " + deps.Cfg.InstanceName + " удалены")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "подтвердить необратимое удаление")
	return cmd
}
