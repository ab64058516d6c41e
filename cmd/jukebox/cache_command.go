package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
)

func newCacheCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "查看缓存中的记录快照（只读）",
	}
	cmd.AddCommand(newCacheListCommand(configFlag))
	cmd.AddCommand(newCacheShowCommand(configFlag))
	return cmd
}

func newCacheListCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "列出缓存中的全部记录",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(*configFlag, optionalArg(args, 0))
			if err != nil {
				return err
			}
			store, err := openCacheReadOnly(eff)
			if err != nil {
				return err
			}
			defer store.Close()

			lister, ok := store.(cache.Lister)
			if !ok {
				return fmt.Errorf("缓存后端 %q 不支持列出记录", eff.Cache)
			}
			ctx := cmd.Context()
			keys, err := lister.Keys(ctx)
			if err != nil {
				return fmt.Errorf("列出缓存记录失败：%w", err)
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintf(out, "缓存为空：%s\n", eff.CacheDir)
				return nil
			}

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				snap, found, err := store.Load(ctx, key)
				switch {
				case cache.IsCorrupt(err):
					rows = append(rows, []string{key, "-", "-", "corrupt"})
					continue
				case err != nil:
					return err
				case !found:
					continue
				}
				rows = append(rows, []string{
					key,
					string(snap.Kind),
					strconv.Itoa(len(snap.Fields)),
					humanize.Time(snap.ScannedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Key", "Kind", "Fields", "Scanned"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d 条记录（%s）\n", len(rows), eff.Cache)
			return nil
		},
	}
}

func newCacheShowCommand(configFlag *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <key> [path]",
		Short: "打印一条记录快照：字段值及其来源",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			eff, err := loadConfig(*configFlag, optionalArg(args, 1))
			if err != nil {
				return err
			}
			store, err := openCacheReadOnly(eff)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, found, err := store.Load(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("缓存中没有记录：%q", key)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			fmt.Fprintln(out, renderSnapshot(snap))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出完整快照")
	return cmd
}

func openCacheReadOnly(eff config.EffectiveConfig) (cache.Store, error) {
	store, err := cache.Open(eff.Cache, eff.CacheDir, true)
	if err != nil {
		return nil, fmt.Errorf("打开缓存失败：%w", err)
	}
	return store, nil
}

func renderSnapshot(s cache.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "key: %s\n", s.Key)
	fmt.Fprintf(&b, "kind: %s\n", s.Kind)
	fmt.Fprintf(&b, "scanned: %s (%s)\n", s.ScannedAt.Format("2006-01-02 15:04:05Z07:00"), humanize.Time(s.ScannedAt))
	for _, f := range s.Files {
		fmt.Fprintf(&b, "file: %s\n", f)
	}

	rows := make([][]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		rows = append(rows, []string{f.Name, f.Source, truncate(fieldText(f), 80)})
	}
	b.WriteString(renderTable([]string{"Field", "Source", "Value"}, rows, nil))

	if len(s.IDs) > 0 || len(s.Artwork) > 0 {
		var extra [][]string
		for _, id := range s.IDs {
			extra = append(extra, []string{"id." + id.Provider, id.Value})
		}
		for _, a := range s.Artwork {
			extra = append(extra, []string{string(a.Kind) + " (" + a.Source + ")", a.URL})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"Ref", "Value"}, extra, nil))
	}
	return b.String()
}

func fieldText(f cache.FieldValue) string {
	switch {
	case len(f.People) > 0:
		names := make([]string, 0, len(f.People))
		for _, p := range f.People {
			names = append(names, p.Name)
		}
		return strings.Join(names, ", ")
	case len(f.Items) > 0:
		return strings.Join(f.Items, ", ")
	default:
		return strings.ReplaceAll(f.Value, "\n", " ")
	}
}
