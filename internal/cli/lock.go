package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/triggerstore/internal/domain"
)

// NewLockCmd создаёт группу команд для снятия зависших блокировок.
func NewLockCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Управление распределённой блокировкой",
	}
	cmd.AddCommand(newLockForceReleaseCmd(depsFn, outputFn))
	return cmd
}

func newLockForceReleaseCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var lockType string

	cmd := &cobra.Command{
		Use:   "force-release",
		Short: "Снять зависшую блокировку инстанса (используется после падения владельца)",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			lt, err := parseLockType(lockType)
			if err != nil {
				return err
			}

			owner, err := deps.ForceReleaseLock(cmd.Context(), lt)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("блокировка %s снята, прежний владелец: %s", lt, owner))
			return nil
		},
	}
	cmd.Flags().StringVar(&lockType, "type", "trigger-access", "тип блокировки: trigger-access или state-access")
	return cmd
}

func parseLockType(s string) (domain.LockType, error) {
	switch s {
	case "trigger-access":
		return domain.LockTriggerAccess, nil
	case "state-access":
		return domain.LockStateAccess, nil
	default:
		return "", fmt.Errorf("неизвестный тип блокировки %q", s)
	}
}
