package dispatch

import (
	"fmt"
	"strconv"

	"github.com/dshills/mailhook/internal/module"
	"github.com/dshills/mailhook/internal/reply"
	"github.com/dshills/mailhook/internal/session"
)

// SizeKey is the auxiliary-store key under which the protocol engine records
// the SIZE parameter declared on MAIL FROM, when one was given.
const SizeKey = "mail.size"

// Core returns the built-in validation module. It supplies the stock replies
// a bare server answers with and enforces the declared-size limit, reading
// only what every other module can read from the Context.
//
// maxMessageSize <= 0 disables the size check.
func Core(banner string, maxMessageSize int64) module.Descriptor {
	return module.Descriptor{
		Kind: module.KindValidation,
		Name: "core",
		Checkpoints: module.Checkpoints{
			Connect: func(ctx *session.Context) int {
				_ = ctx.SetResponse(reply.CodeServiceReady, banner)
				return 0
			},
			MailFrom: func(ctx *session.Context) int {
				if maxMessageSize > 0 && ctx.Exists(SizeKey) {
					v := ctx.Get(SizeKey)
					declared, err := strconv.ParseInt(v.Value(), 10, 64)
					v.Release()
					if err == nil && declared > maxMessageSize {
						_ = ctx.SetResponse(reply.CodeExceededStorage, fmt.Sprintf(
							"5.2.3 Declared message size exceeds maximum (declared: %d bytes, maximum: %d bytes)",
							declared, maxMessageSize))
						return 1
					}
				}
				_ = ctx.SetResponse(reply.CodeOK, "Ok")
				return 0
			},
			Data: func(ctx *session.Context) int {
				_ = ctx.SetDataResponse("Ok: queued")
				return 0
			},
		},
	}
}
