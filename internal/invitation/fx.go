package invitation

import (
	"go.uber.org/fx"

	"github.com/kadkita/kadkita/internal/invitation/repository"
	invitationservice "github.com/kadkita/kadkita/internal/invitation/service"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.Provide),
	fx.Provide(invitationservice.NewService),
)
