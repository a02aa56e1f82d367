package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/triggerstore/internal/domain"
	"github.com/shaiso/triggerstore/internal/repo"
)

// NewJobCmd создаёт группу команд для просмотра job'ов.
func NewJobCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Просмотр job'ов",
	}
	cmd.AddCommand(newJobListCmd(depsFn, outputFn))
	return cmd
}

func newJobListCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список job'ов",
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
			keys, err := deps.Jobs.ListJobKeys(ctx, matcher)
			if err != nil {
				return err
			}

			headers := []string{"GROUP", "NAME", "TYPE", "DURABLE", "CONCURRENT_DISALLOWED"}
			rows := make([][]string, 0, len(keys))
			jobs := make([]*domain.Job, 0, len(keys))
			for _, k := range keys {
				job, err := deps.Jobs.RetrieveJob(ctx, k)
				if err != nil {
					return err
				}
				if job == nil {
					continue
				}
				jobs = append(jobs, job)
				rows = append(rows, []string{
					k.Group, k.Name, job.JobType,
					strconv.FormatBool(job.Durable),
					strconv.FormatBool(job.ConcurrentExecutionDisallowed),
				})
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "фильтр по группе (точное совпадение)")
	return cmd
}
