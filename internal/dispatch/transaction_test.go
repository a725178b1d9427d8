package dispatch

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dshills/mailhook/internal/module"
	"github.com/dshills/mailhook/internal/reply"
	"github.com/dshills/mailhook/internal/session"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newRegistry(t *testing.T, descs ...module.Descriptor) *module.Registry {
	t.Helper()
	reg := module.NewRegistry(module.WithLogger(quietLogger()))
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("Register(%s) error = %v", d.Name, err)
		}
	}
	if err := reg.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return reg
}

func newTxn(t *testing.T, descs ...module.Descriptor) *Transaction {
	t.Helper()
	return NewTransaction(newRegistry(t, descs...), session.New(), WithLogger(quietLogger()))
}

func validator(name string, cps module.Checkpoints) module.Descriptor {
	return module.Descriptor{Kind: module.KindValidation, Name: name, Checkpoints: cps}
}

func TestAllPassAdvancesToComplete(t *testing.T) {
	txn := newTxn(t, validator("m", module.Checkpoints{
		Connect: func(*session.Context) int { return 0 },
		Data:    func(*session.Context) int { return 0 },
	}))

	res, err := txn.Checkpoint(module.CheckpointConnect)
	if err != nil || !res.Pass {
		t.Fatalf("connect = %+v, %v", res, err)
	}
	if txn.State() != StateStartTLS {
		t.Errorf("State() = %v, want starttls", txn.State())
	}

	// STARTTLS and MAIL FROM skipped by the engine.
	res, err = txn.Checkpoint(module.CheckpointData)
	if err != nil || !res.Pass {
		t.Fatalf("data = %+v, %v", res, err)
	}
	if txn.State() != StateComplete {
		t.Errorf("State() = %v, want complete", txn.State())
	}
	if res.Reply.String() != "250 Ok: queued" {
		t.Errorf("data reply = %q, want default queued reply", res.Reply.String())
	}
}

func TestFirstRejectionShortCircuits(t *testing.T) {
	m2Called := false

	m1 := validator("m1", module.Checkpoints{
		Data: func(ctx *session.Context) int {
			_ = ctx.Set("m1", "ran")
			return 1
		},
	})
	m2 := validator("m2", module.Checkpoints{
		Data: func(*session.Context) int { m2Called = true; return 0 },
	})

	txn := newTxn(t, m1, m2)

	res, err := txn.Checkpoint(module.CheckpointData)
	if err != nil {
		t.Fatalf("Checkpoint error = %v", err)
	}
	if res.Pass {
		t.Fatal("Pass = true, want rejection")
	}
	if m2Called {
		t.Error("m2 was invoked after m1 rejected")
	}
	if res.RejectedBy != "m1" {
		t.Errorf("RejectedBy = %q, want m1", res.RejectedBy)
	}
	if txn.State() != StateRejected {
		t.Errorf("State() = %v, want rejected", txn.State())
	}
	// Default data rejection reply when the module set none.
	if res.Reply.String() != "421 Unavailable" {
		t.Errorf("Reply = %q, want default rejection", res.Reply.String())
	}
	// Mutations before the rejection are not rolled back.
	if !txn.Context().Exists("m1") {
		t.Error("m1's store write was rolled back on rejection")
	}
}

func TestRejectionUsesModuleResponse(t *testing.T) {
	txn := newTxn(t, validator("m", module.Checkpoints{
		Connect: func(ctx *session.Context) int {
			_ = ctx.SetResponse(421, "shutting down")
			return 1
		},
	}))

	res, err := txn.Checkpoint(module.CheckpointConnect)
	if err != nil {
		t.Fatalf("Checkpoint error = %v", err)
	}
	if res.Pass {
		t.Fatal("Pass = true, want rejection")
	}
	if res.Reply.String() != "421 shutting down" {
		t.Errorf("Reply = %q, want %q", res.Reply.String(), "421 shutting down")
	}
	if txn.State() != StateRejected {
		t.Errorf("State() = %v, want rejected", txn.State())
	}
}

func TestTerminalStatesRefuseCheckpoints(t *testing.T) {
	txn := newTxn(t, validator("m", module.Checkpoints{
		Connect: func(*session.Context) int { return 1 },
	}))

	if _, err := txn.Checkpoint(module.CheckpointConnect); err != nil {
		t.Fatalf("Checkpoint error = %v", err)
	}
	if _, err := txn.Checkpoint(module.CheckpointData); !errors.Is(err, ErrTerminal) {
		t.Errorf("Checkpoint after rejection error = %v, want ErrTerminal", err)
	}
}

func TestOutOfOrderCheckpoint(t *testing.T) {
	txn := newTxn(t)

	if _, err := txn.Checkpoint(module.CheckpointData); err != nil {
		t.Fatalf("data error = %v", err)
	}
	// Data passed with no modules; transaction is complete.
	if txn.State() != StateComplete {
		t.Fatalf("State() = %v, want complete", txn.State())
	}

	txn = newTxn(t)
	if _, err := txn.Checkpoint(module.CheckpointMailFrom); err != nil {
		t.Fatalf("mailfrom error = %v", err)
	}
	if _, err := txn.Checkpoint(module.CheckpointConnect); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("connect after mailfrom error = %v, want ErrOutOfOrder", err)
	}
}

func TestUnimplementedCheckpointIsAutomaticPass(t *testing.T) {
	txn := newTxn(t, validator("data-only", module.Checkpoints{
		Data: func(*session.Context) int { return 1 },
	}))

	res, err := txn.Checkpoint(module.CheckpointConnect)
	if err != nil || !res.Pass {
		t.Errorf("connect with no connect validator = %+v, %v, want pass", res, err)
	}
}

func TestStartTLSDefaultRejection(t *testing.T) {
	txn := newTxn(t, validator("tls-required", module.Checkpoints{
		StartTLS: func(ctx *session.Context) int {
			if !ctx.IsTLS() {
				return 1
			}
			return 0
		},
	}))

	if _, err := txn.Checkpoint(module.CheckpointConnect); err != nil {
		t.Fatal(err)
	}
	res, err := txn.Checkpoint(module.CheckpointStartTLS)
	if err != nil {
		t.Fatalf("starttls error = %v", err)
	}
	if res.Pass {
		t.Fatal("Pass = true on plain connection")
	}
	if res.Reply.String() != "550 STARTTLS failed" {
		t.Errorf("Reply = %q, want starttls default", res.Reply.String())
	}
}

func TestPanickingValidatorRejects(t *testing.T) {
	txn := newTxn(t, validator("chaotic", module.Checkpoints{
		Connect: func(*session.Context) int { panic("boom") },
	}))

	res, err := txn.Checkpoint(module.CheckpointConnect)
	if err != nil {
		t.Fatalf("Checkpoint error = %v", err)
	}
	if res.Pass {
		t.Error("Pass = true after module panic")
	}
	if txn.State() != StateRejected {
		t.Errorf("State() = %v, want rejected", txn.State())
	}
}

func TestEmitInvokesAllListenersInOrder(t *testing.T) {
	var order []string

	listener := func(name string, rc int) module.Descriptor {
		return module.Descriptor{
			Kind: module.KindEvent,
			Name: name,
			Emit: func(ev module.Event, _ *session.Context) int {
				if ev == module.EventDeliverySuccess {
					order = append(order, name)
				}
				return rc
			},
		}
	}

	// Nonzero returns and panics do not stop the fan-out.
	panicky := module.Descriptor{
		Kind: module.KindEvent,
		Name: "panicky",
		Emit: func(module.Event, *session.Context) int {
			order = append(order, "panicky")
			panic("boom")
		},
	}

	txn := newTxn(t, listener("e1", 7), panicky, listener("e2", 0))
	txn.Emit(module.EventDeliverySuccess)

	want := []string{"e1", "panicky", "e2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestEventModulesCannotVeto(t *testing.T) {
	ev := module.Descriptor{
		Kind: module.KindEvent,
		Name: "grumpy",
		Emit: func(module.Event, *session.Context) int { return 99 },
	}

	txn := newTxn(t, ev)
	txn.Emit(module.EventConnectionOpened)

	if txn.State() != StateConnect {
		t.Errorf("State() = %v after event, want connect", txn.State())
	}
}

func TestEndToEndPassScenario(t *testing.T) {
	setter := validator("sender-setter", module.Checkpoints{
		Data: func(ctx *session.Context) int {
			if err := ctx.SetSender("x@example.com"); err != nil {
				return 1
			}
			return 0
		},
	})

	reg := newRegistry(t, setter)
	ctx := session.New()
	if err := ctx.AddRecipient("a@example.com"); err != nil {
		t.Fatal(err)
	}
	txn := NewTransaction(reg, ctx, WithLogger(quietLogger()))

	if _, err := txn.Checkpoint(module.CheckpointConnect); err != nil {
		t.Fatal(err)
	}
	ctx.BeginData([]byte("hello"))
	res, err := txn.Checkpoint(module.CheckpointData)
	if err != nil || !res.Pass {
		t.Fatalf("data = %+v, %v", res, err)
	}

	s := ctx.Sender()
	if s.Value() != "x@example.com" {
		t.Errorf("Sender() = %q, want x@example.com", s.Value())
	}
	s.Release()
	if txn.State() != StateComplete {
		t.Errorf("State() = %v, want complete", txn.State())
	}
}

func TestCoreModule(t *testing.T) {
	reg := module.NewRegistry(module.WithLogger(quietLogger()))
	if err := reg.Register(Core("mx.example.com ESMTP", 1024)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Init(); err != nil {
		t.Fatal(err)
	}

	ctx := session.New()
	txn := NewTransaction(reg, ctx, WithLogger(quietLogger()))

	res, err := txn.Checkpoint(module.CheckpointConnect)
	if err != nil || !res.Pass {
		t.Fatalf("connect = %+v, %v", res, err)
	}
	if res.Reply.Code != reply.CodeServiceReady || res.Reply.Text != "mx.example.com ESMTP" {
		t.Errorf("connect reply = %q, want banner", res.Reply.String())
	}

	// Declared size above the limit rejects MAIL FROM.
	_ = ctx.Set(SizeKey, "4096")
	res, err = txn.Checkpoint(module.CheckpointMailFrom)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pass {
		t.Fatal("mailfrom passed with oversize declaration")
	}
	if res.Reply.Code != reply.CodeExceededStorage {
		t.Errorf("mailfrom reply code = %d, want 552", res.Reply.Code)
	}
}
