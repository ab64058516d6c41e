package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/jukebox/internal/config"
)

// errRunFailed 表示 run 已输出 report，但其中有失败条目（退出码 1）。
var errRunFailed = errors.New("run 存在失败条目")

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "jukebox",
		Short:         "为本地媒体库聚合元数据并生成 jukebox（poster/fanart/NFO）",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "配置文件路径（默认 <path>/jukebox.toml 或 ./jukebox.toml）")

	rootCmd.AddCommand(newRunCommand(&configFlag))
	rootCmd.AddCommand(newPrioritiesCommand(&configFlag))
	rootCmd.AddCommand(newCacheCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))
	return rootCmd
}

// loadConfig 是只读子命令（priorities / cache）共用的配置加载：不覆盖 apply / concurrency。
func loadConfig(configFile, path string) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	return config.LoadEffective(cwd, config.CLIArgs{
		Path:       strings.TrimSpace(path),
		ConfigFile: strings.TrimSpace(configFile),
	})
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
