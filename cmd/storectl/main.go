// storectl — административная консоль хранилища триггеров: просмотр
// job'ов/триггеров, пауза и возобновление групп, снятие зависшей
// блокировки и полная очистка данных инстанса.
//
// Использование:
//
//	storectl [--config FILE] [--json] <command> <subcommand> [flags]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/triggerstore/internal/cli"
	"github.com/shaiso/triggerstore/internal/config"
)

var version = "dev"

func main() {
	var configFile string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "storectl — административная консоль хранилища триггеров",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "путь к файлу настроек")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")

	depsFn := func() (*cli.Deps, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		return cli.Connect(context.Background(), cfg)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(depsFn, outputFn),
		cli.NewTriggerCmd(depsFn, outputFn),
		cli.NewCalendarCmd(depsFn, outputFn),
		cli.NewGroupCmd(depsFn, outputFn),
		cli.NewLockCmd(depsFn, outputFn),
		cli.NewAdminCmd(depsFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
