package raffle

import (
	"go.uber.org/fx"

	"github.com/winwai/raffled/internal/events"
	"github.com/winwai/raffled/internal/raffle/service"
	"github.com/winwai/raffled/internal/selection"
)

var Module = fx.Module("raffle.service",
	fx.Provide(selection.NewTimeSeededPicker),
	fx.Provide(events.NewOutbox),
	fx.Provide(service.NewService),
)
