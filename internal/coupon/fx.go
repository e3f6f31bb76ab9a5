package coupon

import (
	"go.uber.org/fx"

	"github.com/kadkita/kadkita/internal/coupon/repository"
	couponservice "github.com/kadkita/kadkita/internal/coupon/service"
)

var Module = fx.Module("coupon.service",
	fx.Provide(repository.Provide),
	fx.Provide(couponservice.NewService),
)
