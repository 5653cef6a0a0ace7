package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	"github.com/Taichi-iskw/lesson-media/internal/server"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serve upload callbacks and the lesson editor API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services, cleanup, err := app.NewServiceFactory().CreateServices(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = services.Config.HTTPAddr
		}

		srv := server.New(server.Config{
			Addr:           addr,
			AllowedOrigins: services.Config.AllowedOrigins,
		}, &server.Handlers{
			Media:       services.Media,
			Lessons:     services.Lessons,
			Transcripts: services.Transcripts,
			Ping:        services.Pool.Ping,
			Log:         services.Log,
		}, services.Log)

		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http_addr from the config file)")
	rootCmd.AddCommand(serveCmd)
}
