// schedctl 排组运维命令行：迁移、签发操作员 Token、离线重排与定稿、导出
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "schedctl",
	Short:         "室内高尔夫周排组运维工具",
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("GOLF_CONFIG"), "配置文件路径（默认 ./config/config.yaml）")
	rootCmd.AddCommand(migrateCmd, tokenCmd, regenerateCmd, finalizeCmd, sweepCmd, exportCmd)
}
