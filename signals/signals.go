package signals

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/rainycape/odm/log"
)

var (
	mu       sync.RWMutex
	registry = make(map[string]*Signal)
)

// Event is the value passed to receivers when a signal is sent.
// Senders should clearly document which fields are set for each
// signal.
type Event struct {
	// Signal is the signal being sent. It's set by Send.
	Signal *Signal
	// Sender identifies who sent the signal. Receivers connected
	// with a non-nil sender only receive events with the same
	// Sender.
	Sender interface{}
	// Instance is the object the event refers to.
	Instance interface{}
	// Instances is used by signals which refer to multiple objects.
	Instances []interface{}
	// Created is true when the event refers to a newly created object.
	Created bool
	// Loaded is true when Instances were written or read.
	Loaded bool
	// Args contains any additional signal specific arguments.
	Args map[string]interface{}
}

// Arg returns the additional argument with the given name, or nil.
func (e *Event) Arg(name string) interface{} {
	return e.Args[name]
}

// Receiver is the interface implemented by signal receivers. A non-nil
// error stops the dispatch of the event and is returned from Send.
type Receiver interface {
	Receive(e *Event) error
}

// ReceiverFunc is an adapter which allows using functions as
// receivers.
type ReceiverFunc func(e *Event) error

// Receive calls f(e).
func (f ReceiverFunc) Receive(e *Event) error {
	return f(e)
}

// Listener is the interface returned by Connect. Call Remove to
// stop receiving the signal.
type Listener interface {
	Remove()
}

type listener struct {
	signal   *Signal
	receiver Receiver
	key      interface{}
	// code is the code pointer of function receivers, 0 otherwise
	code   uintptr
	sender interface{}
}

func (l *listener) Remove() {
	l.signal.remove(l)
}

func (l *listener) matches(sender interface{}) bool {
	return l.sender == nil || sameSender(l.sender, sender)
}

type funcKey struct {
	typ reflect.Type
	// ctx is the funcval pointer, which differs between method
	// values and closures bound to different data.
	ctx uintptr
}

// receiverKey returns the identity used to match receivers in
// Connect and Disconnect, or nil when r can't be compared. For
// function receivers it also returns their code pointer.
func receiverKey(r Receiver) (interface{}, uintptr) {
	if r == nil {
		return nil, 0
	}
	val := reflect.ValueOf(r)
	if val.Kind() == reflect.Func {
		if val.IsNil() {
			return nil, 0
		}
		// A func value is a single pointer to its funcval.
		fn := reflect.New(val.Type())
		fn.Elem().Set(val)
		ctx := *(*uintptr)(fn.UnsafePointer())
		return funcKey{typ: val.Type(), ctx: ctx}, val.Pointer()
	}
	if !val.Type().Comparable() {
		return nil, 0
	}
	return r, 0
}

// equal compares a and b with ==, reporting false rather than
// panicking when their dynamic types can't be compared (e.g. a
// struct with an interface field holding a slice).
func equal(a, b interface{}) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func sameSender(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return equal(a, b)
}

// Signal is a named hook point. Every Signal is registered in a
// process-wide registry by its name, so packages can declare their
// signals with New and other packages can reach them either through
// the returned value or by calling Lookup.
type Signal struct {
	name      string
	mu        sync.RWMutex
	listeners []*listener
}

// New returns the signal with the given name, creating it if it
// doesn't exist yet. Calling New several times with the same name
// returns the same *Signal. New panics if name is empty.
func New(name string) *Signal {
	if name == "" {
		panic("signal name can't be empty")
	}
	mu.Lock()
	defer mu.Unlock()
	s := registry[name]
	if s == nil {
		s = &Signal{name: name}
		registry[name] = s
	}
	return s
}

// Lookup returns the signal with the given name, or nil if no signal
// with that name has been created.
func Lookup(name string) *Signal {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// Names returns the names of all the signals, sorted alphabetically.
func Names() []string {
	mu.RLock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	mu.RUnlock()
	sort.Strings(names)
	return names
}

// Name returns the signal name.
func (s *Signal) Name() string {
	return s.name
}

func (s *Signal) String() string {
	return s.name
}

// Connect adds r as a receiver for this signal. If sender is non-nil,
// r will only receive events sent by it. Connecting the same receiver
// with the same sender more than once doesn't add a new registration,
// the existing Listener is returned instead.
//
// Receivers which are functions are identified by their function value,
// so method values of different instances (a.Handle and b.Handle) are
// different receivers. Evaluating a method value or a capturing closure
// again yields a new receiver, use the returned Listener to remove those.
func (s *Signal) Connect(r Receiver, sender interface{}) Listener {
	l, _ := s.connect(r, sender)
	return l
}

func (s *Signal) connect(r Receiver, sender interface{}) (*listener, bool) {
	if r == nil {
		panic(fmt.Errorf("can't connect a nil receiver to signal %s", s.name))
	}
	key, code := receiverKey(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if key != nil {
		for _, v := range s.listeners {
			if equal(v.key, key) && sameSender(v.sender, sender) {
				return v, false
			}
		}
	}
	l := &listener{
		signal:   s,
		receiver: r,
		key:      key,
		code:     code,
		sender:   sender,
	}
	s.listeners = append(s.listeners, l)
	return l, true
}

// ConnectFunc is a shorthand for Connect(ReceiverFunc(f), sender).
func (s *Signal) ConnectFunc(f func(e *Event) error, sender interface{}) Listener {
	return s.Connect(ReceiverFunc(f), sender)
}

// Disconnect removes the registration for r with the given sender,
// which must be the same value passed to Connect. It returns true iff
// a registration was removed. Receivers which can't be compared (e.g.
// structs containing maps or slices) must be removed using the
// Listener returned by Connect.
//
// A function receiver which doesn't match any registration by value,
// like a method value evaluated again, is matched by its code pointer
// when that identifies exactly one registration for sender.
func (s *Signal) Disconnect(r Receiver, sender interface{}) bool {
	key, code := receiverKey(r)
	if key == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ii, v := range s.listeners {
		if equal(v.key, key) && sameSender(v.sender, sender) {
			s.removeAt(ii)
			return true
		}
	}
	if code == 0 {
		return false
	}
	match := -1
	for ii, v := range s.listeners {
		if v.code == code && sameSender(v.sender, sender) {
			if match >= 0 {
				return false
			}
			match = ii
		}
	}
	if match < 0 {
		return false
	}
	s.removeAt(match)
	return true
}

func (s *Signal) remove(l *listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ii, v := range s.listeners {
		if v == l {
			s.removeAt(ii)
			return
		}
	}
}

// removeAt must be called with s.mu held.
func (s *Signal) removeAt(ii int) {
	// Don't modify the backing array in place, Send might be
	// iterating over it.
	listeners := make([]*listener, 0, len(s.listeners)-1)
	listeners = append(listeners, s.listeners[:ii]...)
	s.listeners = append(listeners, s.listeners[ii+1:]...)
}

// Receivers returns the number of receivers connected to this signal,
// regardless of their senders.
func (s *Signal) Receivers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// HasReceiversFor returns true iff an event sent by sender would
// reach at least one receiver.
func (s *Signal) HasReceiversFor(sender interface{}) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.listeners {
		if v.matches(sender) {
			return true
		}
	}
	return false
}

// Send calls every receiver connected to this signal whose sender
// matches e.Sender, in the order they were connected. Receivers
// connected or disconnected while the event is being dispatched
// don't affect the current dispatch. If a receiver returns an error,
// the remaining receivers are not called and the error is returned.
func (s *Signal) Send(e *Event) error {
	e.Signal = s
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	if len(listeners) == 0 {
		return nil
	}
	log.Debugf("Sending signal %s from %v with instance %T", s.name, e.Sender, e.Instance)
	for _, v := range listeners {
		if !v.matches(e.Sender) {
			continue
		}
		if err := v.receiver.Receive(e); err != nil {
			return fmt.Errorf("signal %s: %w", s.name, err)
		}
	}
	return nil
}

// Connected connects r to the signal, calls f and disconnects r again,
// even if f panics. It's useful for temporarily listening to a signal.
// If r was already connected with the same sender, it stays connected.
func (s *Signal) Connected(r Receiver, sender interface{}, f func() error) error {
	l, added := s.connect(r, sender)
	if added {
		defer l.Remove()
	}
	return f()
}
