package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/database"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/jwt"
)

var (
	weekID     string
	operatorID string
	role       string
	tokenTTL   time.Duration
	reason     string
	outputDir  string
)

func init() {
	tokenCmd.Flags().StringVar(&operatorID, "operator", "", "操作员 ID（必填）")
	tokenCmd.Flags().StringVar(&role, "role", jwt.RoleAdmin, "角色：admin | viewer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "有效期，默认取配置")
	_ = tokenCmd.MarkFlagRequired("operator")

	for _, cmd := range []*cobra.Command{regenerateCmd, finalizeCmd, exportCmd} {
		cmd.Flags().StringVar(&weekID, "week", "", "赛周 ID（必填）")
		_ = cmd.MarkFlagRequired("week")
	}
	regenerateCmd.Flags().StringVar(&operatorID, "operator", "cli", "记录到审计日志的操作员")
	regenerateCmd.Flags().StringVar(&reason, "reason", "", "重排原因")
	finalizeCmd.Flags().StringVar(&operatorID, "operator", "cli", "记录到审计日志的操作员")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "导出目录")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		return database.RunMigrations(sqlDB, logger)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发操作员 Access Token",
	Example: `  schedctl token --operator alice --role admin --ttl 12h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if role != jwt.RoleAdmin && role != jwt.RoleViewer {
			return fmt.Errorf("未知角色: %s", role)
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(operatorID, role, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "重排指定赛周（备份 → 生成 → 校验 → 替换）",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		result, runErr := e.svc.Regeneration.Regenerate(ctx, weekID, dto.RegenerationOptions{OperatorID: operatorID, Reason: reason})
		if result != nil {
			if err := printJSON(cmd, result); err != nil {
				return err
			}
		}
		return runErr
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "定稿指定赛周并累加同组历史",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		schedule, err := e.svc.Schedule.Finalize(cmd.Context(), weekID, operatorID)
		if err != nil {
			return err
		}
		return printJSON(cmd, schedule)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "执行一次超时清理（仅作用于本进程内的重排状态）",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		n := e.svc.Regeneration.SweepStale(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "已处理 %d 个超时重排\n", n)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出赛周排组为 Excel",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		buf, filename, err := e.svc.Export.ExportWeek(cmd.Context(), weekID)
		if err != nil {
			return err
		}
		path := filepath.Join(outputDir, filename)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("写入文件失败: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
