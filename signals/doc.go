// Package signals implements synchronous, named signals.
//
// A signal is a hook point which broadcasts events to an arbitrary
// number of receivers. Signals live in a process-wide registry keyed
// by their name: New returns the same *Signal every time it's called
// with the same name, and Lookup finds a signal created by another
// package.
//
// Receivers might be connected for every sender or just for events
// sent by a given one:
//
//	saved := signals.New("post_save")
//	l := saved.ConnectFunc(func(e *signals.Event) error {
//	    fmt.Println("saved", e.Instance, e.Created)
//	    return nil
//	}, authorModel)
//	...
//	saved.Send(&signals.Event{Sender: authorModel, Instance: author, Created: true})
//	...
//	l.Remove()
//
// Receivers are called in the order they were connected, from the
// goroutine calling Send. A receiver returning an error stops the
// dispatch, letting senders abort the operation which triggered the
// signal.
//
// Packages which emit signals should declare them in an exported
// structure, so callers can find every signal a package might send
// (e.g. odm.Signals).
package signals
