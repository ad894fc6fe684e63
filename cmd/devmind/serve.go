package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/devmind/internal/api"
	"github.com/HendryAvila/devmind/internal/bridge"
	"github.com/HendryAvila/devmind/internal/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend API and the editor bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		store, exec := openDashboard()
		br := bridge.New(cfg.Bridge.URL, log)
		defer func() { _ = br.Disconnect() }()

		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := br.Connect(connectCtx); err != nil {
			log.Warn("editor bridge not reachable, will retry on first request", "url", br.URL(), "err", err)
		}
		cancel()

		router := models.NewRouter(log,
			models.NewBridgeProvider(br),
			models.NewOpenAI(cfg.Models.OpenAIAPIKey, ""),
			models.NewClaude(cfg.Models.AnthropicAPIKey, ""),
			models.NewGemini(cfg.Models.GoogleAPIKey, cfg.Models.GeminiBaseURL, nil),
			models.NewOllama(cfg.Models.OllamaBaseURL, nil),
		)

		srv := api.NewServer(api.Deps{
			Bridge: br,
			Store:  store,
			DB:     exec,
			Models: router,
			Logger: log,
		})
		return srv.Run(ctx, cfg.API.Addr)
	},
}
