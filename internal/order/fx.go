package order

import (
	"go.uber.org/fx"

	"github.com/kadkita/kadkita/internal/order/repository"
	orderservice "github.com/kadkita/kadkita/internal/order/service"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(orderservice.NewService),
)
