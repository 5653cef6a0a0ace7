package cmd

import (
	"context"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	"github.com/Taichi-iskw/lesson-media/cmd/lesson"
	"github.com/Taichi-iskw/lesson-media/cmd/transcript"
	lessonSvc "github.com/Taichi-iskw/lesson-media/internal/service/lesson"
)

func openLessonService(ctx context.Context) (lessonSvc.Service, func(), error) {
	services, cleanup, err := app.NewServiceFactory().CreateServices(ctx)
	if err != nil {
		return nil, nil, err
	}
	return services.Lessons, cleanup, nil
}

func init() {
	rootCmd.AddCommand(lesson.NewLessonCmd(openLessonService))
	rootCmd.AddCommand(transcript.NewTranscriptCmd(openLessonService, app.NewServiceFactory().CreateTranscriber))
}
