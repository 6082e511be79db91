package port

import "umpire/modules/kit/errx"

var ErrGameNotFound = errx.NewBiz("GAME_NOT_FOUND", "对局不存在")
