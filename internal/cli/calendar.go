package cli

import (
	"github.com/spf13/cobra"
)

// NewCalendarCmd создаёт группу команд для просмотра календарей.
func NewCalendarCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Просмотр календарей",
	}
	cmd.AddCommand(newCalendarListCmd(depsFn, outputFn))
	return cmd
}

func newCalendarListCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Список календарей",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			ctx := cmd.Context()
			names, err := deps.Calendars.ListCalendarNames(ctx, deps.Cfg.InstanceName)
			if err != nil {
				return err
			}

			headers := []string{"NAME"}
			rows := make([][]string, len(names))
			for i, n := range names {
				rows[i] = []string{n}
			}
			out.Print(headers, rows, names)
			return nil
		},
	}
}
