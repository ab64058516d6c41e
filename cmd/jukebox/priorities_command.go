package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/override"
)

func newPrioritiesCommand(configFlag *string) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "priorities [path]",
		Short: "打印生效的字段优先级表与人物数量上限",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			eff, err := loadConfig(*configFlag, optionalArg(args, 0))
			if err != nil {
				return err
			}
			policy := eff.Policy
			if policy == nil {
				policy = override.MustDefault()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind: %s\n", kind)
			fmt.Fprintln(out, renderPriorities(policy, kind))
			fmt.Fprintln(out, renderLimits(policy))
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "movie", "优先级表：movie 或 tv")
	return cmd
}

func renderPriorities(p *override.Policy, kind domain.Kind) string {
	fields := domain.Fields()
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		spec := f.Spec()
		role := string(spec.Role)
		if role == "" {
			role = "-"
		}
		order := "(未配置，任意来源)"
		if srcs := p.Priorities(kind, f); len(srcs) > 0 {
			order = strings.Join(srcs, " > ")
		}
		rows = append(rows, []string{string(f), role, order})
	}
	return renderTable([]string{"Field", "Role", "Priority"}, rows, nil)
}

func renderLimits(p *override.Policy) string {
	rows := [][]string{
		{"max_actor", strconv.Itoa(p.MaxCount(domain.RoleActor))},
		{"max_director", strconv.Itoa(p.MaxCount(domain.RoleDirector))},
		{"max_writer", strconv.Itoa(p.MaxCount(domain.RoleWriter))},
		{"skip_not_in_list", strconv.FormatBool(p.SkipNotInList())},
	}
	return renderTable([]string{"Limit", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
