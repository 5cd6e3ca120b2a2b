package main

import (
	"github.com/spf13/cobra"

	"gradebook/internal/config"
	"gradebook/internal/logger"
	"gradebook/internal/store"
)

type globalOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

// app 每条命令共用的配置与数据库
type app struct {
	cfg   *config.AppConfig
	info  config.LoadConfigInfo
	store *store.Store
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "gradebook",
		Short:         "学生花名册/成绩导入工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径 (默认: 可执行文件目录下的 config.toml)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别 debug/info/warn/error")

	root.AddCommand(
		newServeCmd(&opts),
		newImportCmd(&opts),
		newHistoryCmd(&opts),
		newStudentsCmd(&opts),
	)
	return root
}

// loadApp 加载配置、初始化日志并打开数据库；调用方负责 close
func loadApp(opts *globalOptions) (*app, error) {
	var (
		cfg  *config.AppConfig
		info config.LoadConfigInfo
		err  error
	)
	if opts.configPath != "" {
		cfg, info, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, info, err = config.LoadConfigWithInfo()
	}
	if err != nil {
		return nil, err
	}

	// 命令行参数覆盖配置
	if opts.dataDir != "" {
		cfg.Data.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.Get()
	log.Debug().Str("dataDir", dataDir).Str("config", info.Path).Msg("config loaded")

	st, err := store.Open(config.DBPath(cfg), store.Options{
		InitScript: config.InitScriptPath(cfg),
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, info: info, store: st}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}
