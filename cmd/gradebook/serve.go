package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gradebook/internal/logger"
	"gradebook/internal/server"
	"gradebook/internal/util"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var (
		port    int
		devMode bool
		open    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			// config.toml 显式配置的端口优先
			if port > 0 && !a.info.PortSpecified {
				a.cfg.Server.Port = port
			} else if !a.info.PortSpecified {
				if p, err := util.FindAvailablePort(a.cfg.Server.Port, 20); err == nil {
					a.cfg.Server.Port = p
				}
			}
			if devMode {
				a.cfg.Server.DevMode = true
			}
			if cmd.Flags().Changed("open") {
				a.cfg.Server.OpenBrowser = open
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(a.cfg, a.store)
			url := fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)
			log := logger.For("serve")
			log.Info().Str("url", url).Str("db", a.store.Path()).Msg("starting")

			if a.cfg.Server.OpenBrowser {
				if err := util.OpenBrowserWithFallback(url); err != nil {
					log.Warn().Err(err).Msg("无法自动打开浏览器，请手动访问")
				}
			}

			return srv.Run(ctx, fmt.Sprintf(":%d", a.cfg.Server.Port))
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "开发模式")
	cmd.Flags().BoolVar(&open, "open", false, "启动后打开浏览器")
	return cmd
}
