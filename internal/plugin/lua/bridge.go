package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mailhook/internal/reply"
	"github.com/dshills/mailhook/internal/session"
)

// contextTypeName is the metatable name for the Context userdata.
const contextTypeName = "mailhook.context"

// registerContextType installs the Context userdata metatable. Called once
// per State at construction.
func registerContextType(l *lua.LState) {
	mt := l.NewTypeMetatable(contextTypeName)
	l.SetField(mt, "__index", l.SetFuncs(l.NewTable(), contextMethods))
}

// PushContext wraps a transaction Context as a userdata for one hook call.
// Scripts must not retain the value beyond the call that received it.
func PushContext(l *lua.LState, ctx *session.Context) *lua.LUserData {
	ud := l.NewUserData()
	ud.Value = ctx
	l.SetMetatable(ud, l.GetTypeMetatable(contextTypeName))
	return ud
}

func checkContext(l *lua.LState) *session.Context {
	ud := l.CheckUserData(1)
	if ctx, ok := ud.Value.(*session.Context); ok {
		return ctx
	}
	l.ArgError(1, "transaction context expected")
	return nil
}

// Each binding below copies the owned boundary value into a Lua string and
// releases it before returning, on every exit path. Scripts never hold an
// owned value, so the single-release contract cannot be violated from Lua.
var contextMethods = map[string]lua.LGFunction{
	"id":                  ctxID,
	"sender":              ctxSender,
	"set_sender":          ctxSetSender,
	"recipients":          ctxRecipients,
	"data":                ctxData,
	"is_tls":              ctxIsTLS,
	"tls_protocol":        ctxTLSProtocol,
	"tls_cipher":          ctxTLSCipher,
	"exists":              ctxExists,
	"get":                 ctxGet,
	"set":                 ctxSet,
	"set_response":        ctxSetResponse,
	"set_data_response":   ctxSetDataResponse,
	"has_delivery":        ctxHasDelivery,
	"delivery_message_id": ctxDeliveryMessageID,
	"delivery_domain":     ctxDeliveryDomain,
	"delivery_server":     ctxDeliveryServer,
	"delivery_error":      ctxDeliveryError,
	"delivery_attempts":   ctxDeliveryAttempts,
}

func pushOwned(l *lua.LState, s interface {
	Value() string
	Release()
}) int {
	defer s.Release()
	l.Push(lua.LString(s.Value()))
	return 1
}

func ctxID(l *lua.LState) int {
	return pushOwned(l, checkContext(l).ID())
}

func ctxSender(l *lua.LState) int {
	return pushOwned(l, checkContext(l).Sender())
}

func ctxSetSender(l *lua.LState) int {
	ctx := checkContext(l)
	err := ctx.SetSender(l.CheckString(2))
	l.Push(lua.LBool(err == nil))
	return 1
}

func ctxRecipients(l *lua.LState) int {
	ctx := checkContext(l)
	list := ctx.Recipients()
	defer list.Release()

	t := l.NewTable()
	for i := 0; i < list.Len(); i++ {
		t.RawSetInt(i+1, lua.LString(list.At(i)))
	}
	l.Push(t)
	return 1
}

func ctxData(l *lua.LState) int {
	return pushOwned(l, checkContext(l).Data())
}

func ctxIsTLS(l *lua.LState) int {
	l.Push(lua.LBool(checkContext(l).IsTLS()))
	return 1
}

func ctxTLSProtocol(l *lua.LState) int {
	return pushOwned(l, checkContext(l).TLSProtocol())
}

func ctxTLSCipher(l *lua.LState) int {
	return pushOwned(l, checkContext(l).TLSCipher())
}

func ctxExists(l *lua.LState) int {
	l.Push(lua.LBool(checkContext(l).Exists(l.CheckString(2))))
	return 1
}

func ctxGet(l *lua.LState) int {
	return pushOwned(l, checkContext(l).Get(l.CheckString(2)))
}

func ctxSet(l *lua.LState) int {
	ctx := checkContext(l)
	err := ctx.Set(l.CheckString(2), l.CheckString(3))
	l.Push(lua.LBool(err == nil))
	return 1
}

func ctxSetResponse(l *lua.LState) int {
	ctx := checkContext(l)
	err := ctx.SetResponse(reply.Code(l.CheckInt(2)), l.CheckString(3))
	l.Push(lua.LBool(err == nil))
	return 1
}

func ctxSetDataResponse(l *lua.LState) int {
	ctx := checkContext(l)
	err := ctx.SetDataResponse(l.CheckString(2))
	l.Push(lua.LBool(err == nil))
	return 1
}

func ctxHasDelivery(l *lua.LState) int {
	l.Push(lua.LBool(checkContext(l).HasDelivery()))
	return 1
}

func ctxDeliveryMessageID(l *lua.LState) int {
	return pushOwned(l, checkContext(l).DeliveryMessageID())
}

func ctxDeliveryDomain(l *lua.LState) int {
	return pushOwned(l, checkContext(l).DeliveryDomain())
}

func ctxDeliveryServer(l *lua.LState) int {
	return pushOwned(l, checkContext(l).DeliveryServer())
}

func ctxDeliveryError(l *lua.LState) int {
	return pushOwned(l, checkContext(l).DeliveryError())
}

func ctxDeliveryAttempts(l *lua.LState) int {
	l.Push(lua.LNumber(checkContext(l).DeliveryAttempts()))
	return 1
}

// StringsToTable converts an argument list to a Lua array table.
func StringsToTable(l *lua.LState, values []string) *lua.LTable {
	t := l.NewTable()
	for i, v := range values {
		t.RawSetInt(i+1, lua.LString(v))
	}
	return t
}
