package cmd

import (
	"context"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	"github.com/Taichi-iskw/lesson-media/cmd/media"
	mediaSvc "github.com/Taichi-iskw/lesson-media/internal/service/media"
)

func openMediaService(ctx context.Context) (mediaSvc.Service, func(), error) {
	services, cleanup, err := app.NewServiceFactory().CreateServices(ctx)
	if err != nil {
		return nil, nil, err
	}
	return services.Media, cleanup, nil
}

func init() {
	rootCmd.AddCommand(media.NewMediaCmd(openMediaService))
}
