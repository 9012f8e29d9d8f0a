package main

import (
	"github.com/sandersonthethird/meetrec/internal/controllers/library"
	"github.com/sandersonthethird/meetrec/internal/controllers/playback"
	"github.com/sandersonthethird/meetrec/internal/controllers/record"
	"github.com/sandersonthethird/meetrec/internal/modules/config"
	"github.com/sandersonthethird/meetrec/internal/modules/rest"
	"github.com/sandersonthethird/meetrec/internal/services/encoder"
	lib "github.com/sandersonthethird/meetrec/internal/services/library"
	pb "github.com/sandersonthethird/meetrec/internal/services/playback"
	"github.com/sandersonthethird/meetrec/internal/services/recorder"
	"go.uber.org/fx"
)

func main() {

	app := fx.New(
		config.Module,
		rest.Module,

		fx.Provide(encoder.NewService),
		fx.Provide(recorder.NewService),
		fx.Provide(pb.NewService),
		fx.Provide(lib.NewService),

		fx.Invoke(record.NewController),
		fx.Invoke(playback.NewController),
		fx.Invoke(library.NewController),
	)

	app.Run()
}
