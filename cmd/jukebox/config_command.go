package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/jukebox/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件工具",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigValidateCommand(configFlag))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "写出带注释的示例配置（不会覆盖已有文件）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				target = config.FileName
			}
			abs, err := filepath.Abs(target)
			if err != nil {
				return err
			}
			if err := config.CreateSample(abs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已写出示例配置：%s\n", abs)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "输出路径（默认 ./"+config.FileName+"）")
	return cmd
}

func newConfigValidateCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "加载并校验配置，打印生效的关键项",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(*configFlag, optionalArg(args, 0))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			source := eff.ConfigFile
			if source == "" {
				source = "(默认值)"
			}
			fmt.Fprintf(out, "配置有效：%s\n", source)
			fmt.Fprintf(out, "  path: %s\n", eff.Path)
			fmt.Fprintf(out, "  jukebox: %s\n", eff.JukeboxDir)
			fmt.Fprintf(out, "  cache: %s\n", eff.Cache)
			fmt.Fprintf(out, "  libraries: %d\n", len(eff.Libraries))
			fmt.Fprintf(out, "  metadata: %s\n", providerChain(eff.Providers.Metadata))
			fmt.Fprintf(out, "  poster: %s\n", providerChain(eff.Providers.Poster))
			fmt.Fprintf(out, "  fanart: %s\n", providerChain(eff.Providers.Fanart))
			return nil
		},
	}
}
