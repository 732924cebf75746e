package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rainycape/odm/odm"
	"github.com/rainycape/odm/signals"
)

type Author struct {
	odm.Document
	Name string `odm:"name,required"`
}

func (a *Author) String() string {
	return a.Name
}

var authorModel = odm.MustRegister((*Author)(nil), &odm.Options{Collection: "odmctl_author"})

var demoSignals = []*signals.Signal{
	odm.Signals.PreSave,
	odm.Signals.PostSave,
	odm.Signals.PreDelete,
	odm.Signals.PostDelete,
}

type printer struct {
	w io.Writer
}

func (p printer) Receive(e *signals.Event) error {
	fmt.Fprintf(p.w, "%s signal, %s\n", e.Signal.Name(), e.Instance)
	if e.Signal == odm.Signals.PostSave {
		if e.Created {
			fmt.Fprintln(p.w, "Is created")
		} else {
			fmt.Fprintln(p.w, "Is updated")
		}
	}
	return nil
}

func receiverCounts() []int {
	counts := make([]int, len(demoSignals))
	for ii, v := range demoSignals {
		counts[ii] = v.Receivers()
	}
	return counts
}

func demoCommand(ctx context.Context, db *odm.ODM, w io.Writer) error {
	if err := db.Initialize(ctx); err != nil {
		return err
	}
	before := receiverCounts()
	p := printer{w: w}
	for _, v := range demoSignals {
		v.Connect(p, authorModel)
	}
	errs := []error{demoLifecycle(ctx, db)}
	for _, v := range demoSignals {
		if !v.Disconnect(p, authorModel) {
			errs = append(errs, fmt.Errorf("receiver for %s was not connected", v.Name()))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	after := receiverCounts()
	for ii := range before {
		if before[ii] != after[ii] {
			return fmt.Errorf("%s has %d receivers after disconnecting, expecting %d", demoSignals[ii].Name(), after[ii], before[ii])
		}
	}
	return nil
}

func demoLifecycle(ctx context.Context, db *odm.ODM) error {
	a := &Author{Name: "Bill Shakespeare"}
	if _, err := db.Save(ctx, a); err != nil {
		return err
	}
	if err := db.Reload(ctx, a); err != nil {
		return err
	}
	a.Name = "William Shakespeare"
	if _, err := db.Save(ctx, a); err != nil {
		return err
	}
	return db.Delete(ctx, a)
}
