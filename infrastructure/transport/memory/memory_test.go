package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	domaintransport "github.com/felixgeelhaar/heapscope/domain/transport"
)

var endpoints = domaintransport.Endpoints{Publish: "pub", Request: "req"}

func TestTransport_Lifecycle(t *testing.T) {
	t.Parallel()

	tr := New()
	ctx := context.Background()

	if _, err := tr.PollCommand(ctx); !errors.Is(err, domaintransport.ErrNotBound) {
		t.Errorf("PollCommand() before Bind error = %v, want ErrNotBound", err)
	}
	if err := tr.Bind(ctx, endpoints); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if err := tr.Bind(ctx, endpoints); !errors.Is(err, domaintransport.ErrAlreadyBound) {
		t.Errorf("second Bind() error = %v, want ErrAlreadyBound", err)
	}
	if tr.Endpoints() != endpoints {
		t.Errorf("Endpoints() = %+v", tr.Endpoints())
	}

	for i := 0; i < 2; i++ {
		if err := tr.Unbind(ctx); err != nil {
			t.Fatalf("Unbind() error = %v", err)
		}
	}
	if tr.Binds() != 1 || tr.Unbinds() != 1 {
		t.Errorf("Binds/Unbinds = %d/%d, want 1/1", tr.Binds(), tr.Unbinds())
	}
}

func TestTransport_SendAndPoll(t *testing.T) {
	t.Parallel()

	tr := New(WithInboxSize(1))
	ctx := context.Background()

	if err := tr.Send(agent.CommandTriggerGC); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := tr.Send(agent.CommandTriggerGC); !errors.Is(err, domaintransport.ErrBusy) {
		t.Errorf("Send() on full inbox error = %v, want ErrBusy", err)
	}
	select {
	case <-tr.Ready():
	default:
		t.Error("Ready() not signalled")
	}

	if err := tr.Bind(ctx, endpoints); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if cmd, _ := tr.PollCommand(ctx); cmd != agent.CommandTriggerGC {
		t.Errorf("PollCommand() = %q, want trigger_gc", cmd)
	}
	if cmd, _ := tr.PollCommand(ctx); !cmd.IsNone() {
		t.Errorf("PollCommand() = %q, want none", cmd)
	}
	if tr.Polls() != 2 || tr.Pending() != 0 {
		t.Errorf("Polls/Pending = %d/%d, want 2/0", tr.Polls(), tr.Pending())
	}
}

func TestTransport_Publish(t *testing.T) {
	t.Parallel()

	tr := New()
	ctx := context.Background()
	if err := tr.Bind(ctx, endpoints); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	_ = tr.Publish(ctx, domaintransport.Message{Event: "gc_stats"})
	_ = tr.Publish(ctx, domaintransport.Message{Event: "object_space_dump"})

	tr.SetPublishError(errors.New("down"))
	if err := tr.Publish(ctx, domaintransport.Message{Event: "gc_stats"}); !errors.Is(err, domaintransport.ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}

	if len(tr.Published()) != 2 {
		t.Errorf("len(Published()) = %d, want 2", len(tr.Published()))
	}
	if len(tr.Events("gc_stats")) != 1 {
		t.Errorf("len(Events(gc_stats)) = %d, want 1", len(tr.Events("gc_stats")))
	}
}

func TestTransport_BindError(t *testing.T) {
	t.Parallel()

	refused := errors.New("address in use")
	tr := New(WithBindError(refused))
	err := tr.Bind(context.Background(), endpoints)
	if !errors.Is(err, domaintransport.ErrBindFailed) || !errors.Is(err, refused) {
		t.Errorf("Bind() error = %v, want ErrBindFailed wrapping %v", err, refused)
	}
	if tr.Bound() || tr.Binds() != 0 {
		t.Error("failed Bind() left transport bound")
	}
}
