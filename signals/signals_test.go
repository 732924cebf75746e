package signals

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

type sender struct {
	name string
}

type recorder struct {
	name   string
	output *[]string
}

func (r *recorder) Receive(e *Event) error {
	*r.output = append(*r.output, fmt.Sprintf("%s: %s %v", r.name, e.Signal.Name(), e.Instance))
	return nil
}

func TestNewReturnsSameSignal(t *testing.T) {
	s1 := New("test-same")
	s2 := New("test-same")
	if s1 != s2 {
		t.Error("expecting New to return the same signal for the same name")
	}
	if Lookup("test-same") != s1 {
		t.Error("expecting Lookup to return the signal created by New")
	}
	if Lookup("test-nonexistent") != nil {
		t.Error("expecting nil from Lookup for an unknown signal")
	}
	found := false
	for _, v := range Names() {
		if v == "test-same" {
			found = true
		}
	}
	if !found {
		t.Errorf("expecting test-same in %v", Names())
	}
}

func TestEmptyName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expecting a panic with an empty signal name")
		}
	}()
	New("")
}

func TestOrderAndSender(t *testing.T) {
	sig := New("test-order")
	a, b := &sender{"a"}, &sender{"b"}
	var output []string
	r1 := &recorder{"r1", &output}
	r2 := &recorder{"r2", &output}
	r3 := &recorder{"r3", &output}
	sig.Connect(r1, a)
	sig.Connect(r2, nil)
	sig.Connect(r3, b)
	defer func() {
		sig.Disconnect(r1, a)
		sig.Disconnect(r2, nil)
		sig.Disconnect(r3, b)
	}()
	if err := sig.Send(&Event{Sender: a, Instance: 1}); err != nil {
		t.Fatal(err)
	}
	if err := sig.Send(&Event{Sender: b, Instance: 2}); err != nil {
		t.Fatal(err)
	}
	if err := sig.Send(&Event{Instance: 3}); err != nil {
		t.Fatal(err)
	}
	expect := []string{
		"r1: test-order 1",
		"r2: test-order 1",
		"r2: test-order 2",
		"r3: test-order 2",
		"r2: test-order 3",
	}
	if diff := cmp.Diff(expect, output); diff != "" {
		t.Errorf("unexpected signal output (-want +got):\n%s", diff)
	}
	if !sig.HasReceiversFor(a) || !sig.HasReceiversFor(&sender{"c"}) {
		t.Error("expecting receivers for every sender")
	}
}

func TestDisconnect(t *testing.T) {
	sig := New("test-disconnect")
	a, b := &sender{"a"}, &sender{"b"}
	var output []string
	r := &recorder{"r", &output}
	before := sig.Receivers()
	sig.Connect(r, a)
	sig.Connect(r, b)
	if n := sig.Receivers(); n != before+2 {
		t.Fatalf("expecting %d receivers, got %d instead", before+2, n)
	}
	if sig.Disconnect(r, nil) {
		t.Error("disconnecting with a different sender should not remove anything")
	}
	if !sig.Disconnect(r, a) {
		t.Error("expecting Disconnect to remove the receiver for a")
	}
	if sig.Disconnect(r, a) {
		t.Error("expecting second Disconnect to return false")
	}
	sig.Send(&Event{Sender: a, Instance: "a"})
	sig.Send(&Event{Sender: b, Instance: "b"})
	if diff := cmp.Diff([]string{"r: test-disconnect b"}, output); diff != "" {
		t.Errorf("unexpected signal output (-want +got):\n%s", diff)
	}
	if !sig.Disconnect(r, b) {
		t.Error("expecting Disconnect to remove the receiver for b")
	}
	if n := sig.Receivers(); n != before {
		t.Errorf("expecting %d receivers after disconnecting, got %d instead", before, n)
	}
	if sig.HasReceiversFor(b) {
		t.Error("expecting no receivers for b")
	}
}

func TestDuplicateConnect(t *testing.T) {
	sig := New("test-duplicate")
	var output []string
	r := &recorder{"r", &output}
	before := sig.Receivers()
	l1 := sig.Connect(r, nil)
	l2 := sig.Connect(r, nil)
	if l1 != l2 {
		t.Error("expecting the same listener when connecting twice")
	}
	if n := sig.Receivers(); n != before+1 {
		t.Errorf("expecting %d receivers, got %d instead", before+1, n)
	}
	sig.Send(&Event{Instance: 1})
	if len(output) != 1 {
		t.Errorf("expecting receiver to be called once, got %v", output)
	}
	l1.Remove()
	l2.Remove()
	if n := sig.Receivers(); n != before {
		t.Errorf("expecting %d receivers, got %d instead", before, n)
	}
}

func TestFuncReceivers(t *testing.T) {
	sig := New("test-func")
	var calls []string
	first := func(e *Event) error {
		calls = append(calls, "first")
		return nil
	}
	second := func(e *Event) error {
		calls = append(calls, "second")
		return nil
	}
	sig.ConnectFunc(first, nil)
	sig.ConnectFunc(second, nil)
	sig.Send(&Event{})
	if !sig.Disconnect(ReceiverFunc(first), nil) {
		t.Error("expecting function receiver to be disconnected")
	}
	sig.Send(&Event{})
	if !sig.Disconnect(ReceiverFunc(second), nil) {
		t.Error("expecting function receiver to be disconnected")
	}
	if diff := cmp.Diff([]string{"first", "second", "second"}, calls); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
	if n := sig.Receivers(); n != 0 {
		t.Errorf("expecting no receivers, got %d", n)
	}
}

type uncomparable struct {
	calls []int
}

func (u uncomparable) Receive(e *Event) error {
	return nil
}

func TestUncomparableReceiver(t *testing.T) {
	sig := New("test-uncomparable")
	r := uncomparable{}
	l1 := sig.Connect(r, nil)
	l2 := sig.Connect(r, nil)
	if n := sig.Receivers(); n != 2 {
		t.Errorf("expecting 2 receivers, got %d instead", n)
	}
	if sig.Disconnect(r, nil) {
		t.Error("uncomparable receivers can't be disconnected by value")
	}
	l1.Remove()
	l2.Remove()
	l2.Remove()
	if n := sig.Receivers(); n != 0 {
		t.Errorf("expecting no receivers, got %d", n)
	}
}

func TestReceiverError(t *testing.T) {
	sig := New("test-error")
	errAbort := errors.New("abort")
	var calls int
	l1 := sig.ConnectFunc(func(e *Event) error {
		calls++
		return errAbort
	}, nil)
	defer l1.Remove()
	l2 := sig.ConnectFunc(func(e *Event) error {
		calls++
		return nil
	}, nil)
	defer l2.Remove()
	err := sig.Send(&Event{})
	if !errors.Is(err, errAbort) {
		t.Errorf("expecting error %v, got %v instead", errAbort, err)
	}
	if calls != 1 {
		t.Errorf("expecting dispatch to stop after the error, got %d calls", calls)
	}
}

func TestConnectDuringSend(t *testing.T) {
	sig := New("test-reentrant")
	var calls []string
	var inner Listener
	outer := sig.ConnectFunc(func(e *Event) error {
		calls = append(calls, "outer")
		if inner == nil {
			inner = sig.ConnectFunc(func(e *Event) error {
				calls = append(calls, "inner")
				return nil
			}, nil)
		}
		return nil
	}, nil)
	sig.Send(&Event{})
	sig.Send(&Event{})
	outer.Remove()
	inner.Remove()
	if diff := cmp.Diff([]string{"outer", "outer", "inner"}, calls); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestConnected(t *testing.T) {
	sig := New("test-connected")
	var output []string
	r := &recorder{"r", &output}
	err := sig.Connected(r, nil, func() error {
		if n := sig.Receivers(); n != 1 {
			t.Errorf("expecting 1 receiver inside Connected, got %d", n)
		}
		return sig.Send(&Event{Instance: "x"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := sig.Receivers(); n != 0 {
		t.Errorf("expecting no receivers after Connected, got %d", n)
	}
	if diff := cmp.Diff([]string{"r: test-connected x"}, output); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestEventArgs(t *testing.T) {
	sig := New("test-args")
	var got interface{}
	l := sig.ConnectFunc(func(e *Event) error {
		got = e.Arg("values")
		if e.Arg("missing") != nil {
			t.Error("expecting nil for a missing argument")
		}
		return nil
	}, nil)
	defer l.Remove()
	sig.Send(&Event{Args: map[string]interface{}{"values": 42}})
	if got != 42 {
		t.Errorf("expecting argument 42, got %v instead", got)
	}
}

// TestConnectDisconnectSymmetry checks that, for any interleaving
// of connections, disconnecting everything that was connected
// restores the receiver count.
func TestConnectDisconnectSymmetry(t *testing.T) {
	sig := New("test-symmetry")
	senders := []*sender{{"a"}, {"b"}, {"c"}}
	var output []string
	receivers := []*recorder{{"r0", &output}, {"r1", &output}, {"r2", &output}}
	rapid.Check(t, func(t *rapid.T) {
		before := sig.Receivers()
		type pair struct {
			r, s int
		}
		connected := map[pair]bool{}
		var order []pair
		t.Repeat(map[string]func(*rapid.T){
			"connect": func(t *rapid.T) {
				p := pair{
					r: rapid.IntRange(0, len(receivers)-1).Draw(t, "receiver"),
					s: rapid.IntRange(-1, len(senders)-1).Draw(t, "sender"),
				}
				var snd interface{}
				if p.s >= 0 {
					snd = senders[p.s]
				}
				sig.Connect(receivers[p.r], snd)
				if !connected[p] {
					connected[p] = true
					order = append(order, p)
				}
			},
			"": func(t *rapid.T) {
				if n := sig.Receivers(); n != before+len(connected) {
					t.Fatalf("expecting %d receivers, got %d", before+len(connected), n)
				}
			},
		})
		for _, p := range order {
			var snd interface{}
			if p.s >= 0 {
				snd = senders[p.s]
			}
			if !sig.Disconnect(receivers[p.r], snd) {
				t.Fatalf("could not disconnect %v", p)
			}
		}
		if n := sig.Receivers(); n != before {
			t.Fatalf("expecting %d receivers after disconnecting, got %d", before, n)
		}
	})
}

type counter struct {
	name  string
	calls int
}

func (c *counter) Handle(e *Event) error {
	c.calls++
	return nil
}

func TestMethodValueReceivers(t *testing.T) {
	sig := New("test-method-values")
	a, b := &counter{name: "a"}, &counter{name: "b"}
	la := sig.ConnectFunc(a.Handle, nil)
	lb := sig.ConnectFunc(b.Handle, nil)
	if la == lb {
		t.Fatal("expecting different listeners for method values of different instances")
	}
	if n := sig.Receivers(); n != 2 {
		t.Fatalf("expecting 2 receivers, got %d instead", n)
	}
	sig.Send(&Event{})
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("expecting one call each, got a=%d b=%d", a.calls, b.calls)
	}
	// Both registrations share the code pointer, so a freshly
	// evaluated method value is ambiguous.
	if sig.Disconnect(ReceiverFunc(b.Handle), nil) {
		t.Error("expecting ambiguous Disconnect to remove nothing")
	}
	lb.Remove()
	if !sig.Disconnect(ReceiverFunc(a.Handle), nil) {
		t.Error("expecting Disconnect to remove the only registration for a.Handle")
	}
	if n := sig.Receivers(); n != 0 {
		t.Errorf("expecting no receivers, got %d", n)
	}
}

type sliceWriter []byte

func (w sliceWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

type writerReceiver struct {
	w interface {
		Write([]byte) (int, error)
	}
}

func (r writerReceiver) Receive(e *Event) error {
	_, err := r.w.Write([]byte(e.Signal.Name()))
	return err
}

func TestDynamicallyUncomparableReceiver(t *testing.T) {
	sig := New("test-dynamic-uncomparable")
	r := writerReceiver{w: sliceWriter{}}
	l1 := sig.Connect(r, nil)
	l2 := sig.Connect(r, nil)
	if n := sig.Receivers(); n != 2 {
		t.Errorf("expecting 2 receivers, got %d instead", n)
	}
	if sig.Disconnect(r, nil) {
		t.Error("expecting Disconnect to remove nothing")
	}
	if err := sig.Send(&Event{}); err != nil {
		t.Fatal(err)
	}
	l1.Remove()
	l2.Remove()
	if n := sig.Receivers(); n != 0 {
		t.Errorf("expecting no receivers, got %d", n)
	}
	// The same shape with a pointer is comparable.
	rp := writerReceiver{w: &sliceWriter{}}
	sig.Connect(rp, nil)
	sig.Connect(rp, nil)
	if !sig.Disconnect(rp, nil) || sig.Receivers() != 0 {
		t.Error("expecting a comparable receiver to be connected once and disconnected")
	}
}
