package odm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/odm/codec"
	_ "github.com/rainycape/odm/odm/driver/memory"
	_ "github.com/rainycape/odm/odm/driver/sqlite"
	"github.com/rainycape/odm/signals"
)

type Timestamps struct {
	Created time.Time
	Updated time.Time
}

type Book struct {
	Document
	Title     string   `odm:"title,required,max_length:40"`
	Genre     string   `odm:"genre,choices:comedy|tragedy|history"`
	Tags      []string `odm:",omitempty,max_length:3"`
	Pages     int
	Notes     string `odm:"-"`
	internal  int
	Published *time.Time
	Timestamps
}

type Review struct {
	Document
	Rating int
	Text   string `odm:"text,min_length:3"`
}

func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("rating %d is out of range", r.Rating)
	}
	return nil
}

var (
	bookModel   = MustRegister((*Book)(nil), nil)
	reviewModel = MustRegister(Review{}, &Options{Collection: "book_reviews"})
)

var drivers = []string{
	"memory://",
	"sqlite://:memory:",
	"sqlite://:memory:?codec=gob",
	"memory://?codec=msgpack",
	"sqlite://:memory:?codec=bson",
}

func newODM(t *testing.T, url string) *ODM {
	t.Helper()
	o, err := New(config.MustParseURL(url))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		o.Close()
	})
	if err := o.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return o
}

func runTest(t *testing.T, f func(*testing.T, *ODM)) {
	for _, v := range drivers {
		t.Run(v, func(t *testing.T) {
			f(t, newODM(t, v))
		})
	}
}

func newBook(title string) *Book {
	published := time.Date(1623, 11, 8, 0, 0, 0, 0, time.UTC)
	return &Book{
		Title:     title,
		Genre:     "comedy",
		Tags:      []string{"folio"},
		Pages:     42,
		Published: &published,
		Timestamps: Timestamps{
			Created: time.Date(2016, 4, 23, 10, 30, 0, 0, time.UTC),
		},
	}
}

var bookDiffOpts = []cmp.Option{
	cmpopts.IgnoreUnexported(Book{}),
	cmpopts.IgnoreFields(Book{}, "Notes"),
	cmpopts.EquateEmpty(),
}

// recorder records the events for the given signals.
type recorder struct {
	events []string
}

func (r *recorder) Receive(e *signals.Event) error {
	s := e.Signal.Name()
	if e.Created {
		s += " created"
	}
	if e.Loaded {
		s += " loaded"
	}
	if len(e.Instances) > 0 {
		s += fmt.Sprintf(" %d", len(e.Instances))
	}
	r.events = append(r.events, s)
	return nil
}

func (r *recorder) connect(t *testing.T, sender interface{}, sigs ...*signals.Signal) {
	for _, v := range sigs {
		v := v
		v.Connect(r, sender)
		t.Cleanup(func() {
			if !v.Disconnect(r, sender) {
				t.Errorf("could not disconnect recorder from %s", v)
			}
		})
	}
}

func TestSave(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		b := newBook("The Tempest")
		b.Notes = "not stored"
		created, err := o.Save(ctx, b)
		if err != nil {
			t.Fatal(err)
		}
		if !created {
			t.Error("expecting the first save to create the document")
		}
		if b.ID == "" {
			t.Fatal("expecting an id after saving")
		}
		if n, err := o.Count(ctx, bookModel); err != nil || n != 1 {
			t.Errorf("expecting 1 book, got %d, %v", n, err)
		}
		var b2 Book
		if err := o.Get(ctx, b.ID, &b2); err != nil {
			t.Fatal(err)
		}
		if b2.Notes != "" {
			t.Errorf("ignored fields must not be stored, got %q", b2.Notes)
		}
		if diff := cmp.Diff(b, &b2, bookDiffOpts...); diff != "" {
			t.Errorf("unexpected document loaded (-want +got):\n%s", diff)
		}
		b.Pages = 97
		created, err = o.Save(ctx, b)
		if err != nil {
			t.Fatal(err)
		}
		if created {
			t.Error("expecting the second save to update the document")
		}
		if err := o.Reload(ctx, &b2); err != nil {
			t.Fatal(err)
		}
		if b2.Pages != 97 {
			t.Errorf("expecting 97 pages after reloading, got %d", b2.Pages)
		}
		if n, err := o.Count(ctx, bookModel); err != nil || n != 1 {
			t.Errorf("expecting 1 book after updating, got %d, %v", n, err)
		}
	})
}

func TestSaveWithID(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		b := newBook("Macbeth")
		b.ID = "macbeth"
		created, err := o.Save(ctx, b)
		if err != nil {
			t.Fatal(err)
		}
		if !created {
			t.Error("saving a document with an unknown id must insert it")
		}
		if b.ID != "macbeth" {
			t.Errorf("expecting id to be preserved, got %q", b.ID)
		}
		var b2 Book
		if err := o.Get(ctx, "macbeth", &b2); err != nil {
			t.Fatal(err)
		}
		if b2.Title != "Macbeth" {
			t.Errorf("expecting Macbeth, got %q", b2.Title)
		}
	})
}

func TestSaveSignals(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		var r recorder
		r.connect(t, bookModel, Signals.PreSave, Signals.PreSavePostValidation, Signals.PostSave)
		b := newBook("Hamlet")
		o.MustSave(ctx, b)
		o.MustSave(ctx, b)
		expect := []string{
			"pre_save",
			"pre_save_post_validation created",
			"post_save created",
			"pre_save",
			"pre_save_post_validation",
			"post_save",
		}
		if diff := cmp.Diff(expect, r.events); diff != "" {
			t.Errorf("unexpected events (-want +got):\n%s", diff)
		}
	})
}

func TestAbortSave(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		errAbort := errors.New("read only")
		for _, sig := range []*signals.Signal{Signals.PreSave, Signals.PreSavePostValidation} {
			var posted bool
			l1 := sig.ConnectFunc(func(e *signals.Event) error {
				return errAbort
			}, bookModel)
			l2 := Signals.PostSave.ConnectFunc(func(e *signals.Event) error {
				posted = true
				return nil
			}, bookModel)
			b := newBook("Othello")
			_, err := o.Save(ctx, b)
			l1.Remove()
			l2.Remove()
			if !errors.Is(err, errAbort) {
				t.Errorf("%s: expecting error %v, got %v instead", sig, errAbort, err)
			}
			if b.ID != "" {
				t.Errorf("%s: aborted saves must not assign an id", sig)
			}
			if posted {
				t.Errorf("%s: post_save must not be emitted for aborted saves", sig)
			}
			if n, _ := o.Count(ctx, bookModel); n != 0 {
				t.Errorf("%s: expecting no books, got %d", sig, n)
			}
		}
	})
}

func TestValidation(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		var r recorder
		r.connect(t, bookModel, Signals.PreSave, Signals.PreSavePostValidation)
		b := newBook("")
		b.Genre = "romance"
		b.Tags = []string{"a", "b", "c", "d"}
		_, err := o.Save(ctx, b)
		if err == nil {
			t.Fatal("expecting a validation error")
		}
		var fields []string
		for _, v := range err.(interface{ Unwrap() []error }).Unwrap() {
			var verr *ValidationError
			if !errors.As(v, &verr) {
				t.Fatalf("expecting a *ValidationError, got %T", v)
			}
			if verr.Model != "Book" {
				t.Errorf("expecting model Book, got %q", verr.Model)
			}
			fields = append(fields, verr.Field)
		}
		if diff := cmp.Diff([]string{"title", "genre", "tags"}, fields); diff != "" {
			t.Errorf("unexpected invalid fields (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"pre_save"}, r.events); diff != "" {
			t.Errorf("pre_save_post_validation must not be emitted for invalid documents (-want +got):\n%s", diff)
		}
		b = newBook(strings.Repeat("x", 41))
		b.Genre = ""
		_, err = o.Save(ctx, b)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "title" || !strings.Contains(verr.Message, "greater than 40") {
			t.Errorf("expecting a max_length error for title, got %v", err)
		}
	})
}

func TestValidator(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		_, err := o.Save(ctx, &Review{Rating: 7, Text: "Superb"})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "" || verr.Model != "Review" {
			t.Errorf("expecting a validation error from Validate, got %v", err)
		}
		// Field validations run before Validate
		_, err = o.Save(ctx, &Review{Rating: 7, Text: "Ok"})
		if !errors.As(err, &verr) || verr.Field != "text" {
			t.Errorf("expecting a validation error for text, got %v", err)
		}
		if _, err := o.Save(ctx, &Review{Rating: 5, Text: "Superb"}); err != nil {
			t.Error(err)
		}
	})
}

func TestDelete(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		var r recorder
		r.connect(t, bookModel, Signals.PreDelete, Signals.PostDelete)
		b := newBook("King Lear")
		if err := o.Delete(ctx, b); !errors.Is(err, ErrNoID) {
			t.Errorf("expecting ErrNoID, got %v", err)
		}
		o.MustSave(ctx, b)
		var seen *Book
		l := Signals.PostDelete.ConnectFunc(func(e *signals.Event) error {
			seen = e.Instance.(*Book)
			return nil
		}, bookModel)
		defer l.Remove()
		o.MustDelete(ctx, b)
		if seen != b || seen.Title != "King Lear" || seen.ID == "" {
			t.Errorf("post_delete must receive the document with its fields, got %+v", seen)
		}
		if err := o.Reload(ctx, b); !errors.Is(err, ErrNotFound) {
			t.Errorf("expecting ErrNotFound reloading a deleted document, got %v", err)
		}
		if err := o.Delete(ctx, b); !errors.Is(err, ErrNotFound) {
			t.Errorf("expecting ErrNotFound deleting a deleted document, got %v", err)
		}
		expect := []string{"pre_delete", "post_delete", "pre_delete"}
		if diff := cmp.Diff(expect, r.events); diff != "" {
			t.Errorf("unexpected events (-want +got):\n%s", diff)
		}
	})
}

func TestAbortDelete(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		b := newBook("Coriolanus")
		o.MustSave(ctx, b)
		errAbort := errors.New("keep it")
		err := Signals.PreDelete.Connected(signals.ReceiverFunc(func(e *signals.Event) error {
			return errAbort
		}), bookModel, func() error {
			return o.Delete(ctx, b)
		})
		if !errors.Is(err, errAbort) {
			t.Errorf("expecting error %v, got %v instead", errAbort, err)
		}
		if err := o.Reload(ctx, b); err != nil {
			t.Errorf("aborted delete removed the document: %v", err)
		}
	})
}

func TestInsert(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		var r recorder
		r.connect(t, bookModel, Signals.PreBulkInsert, Signals.PostBulkInsert, Signals.PostSave)
		books := []interface{}{newBook("Cymbeline"), newBook("Pericles"), newBook("Timon of Athens")}
		books[1].(*Book).ID = "pericles"
		o.MustInsert(ctx, books...)
		for _, v := range books {
			if v.(*Book).ID == "" {
				t.Errorf("expecting an id for %s", v.(*Book).Title)
			}
		}
		if books[1].(*Book).ID != "pericles" {
			t.Errorf("expecting id to be preserved, got %q", books[1].(*Book).ID)
		}
		if n, err := o.Count(ctx, bookModel); err != nil || n != 3 {
			t.Errorf("expecting 3 books, got %d, %v", n, err)
		}
		if diff := cmp.Diff([]string{"pre_bulk_insert 3", "post_bulk_insert loaded 3"}, r.events); diff != "" {
			t.Errorf("unexpected events (-want +got):\n%s", diff)
		}
		if err := o.Insert(ctx); err != nil {
			t.Errorf("inserting nothing must not fail: %v", err)
		}
	})
}

func TestInsertErrors(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		invalid := newBook("")
		if err := o.Insert(ctx, newBook("Henry V"), invalid); err == nil {
			t.Error("expecting a validation error")
		}
		a, b := newBook("Henry VI"), newBook("Henry VI, Part 2")
		a.ID, b.ID = "henry", "henry"
		if err := o.Insert(ctx, a, b); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expecting ErrDuplicate, got %v", err)
		}
		if err := o.Insert(ctx, newBook("Henry VIII"), &Review{Rating: 3, Text: "Meh"}); err == nil {
			t.Error("expecting an error inserting different models")
		}
		if n, _ := o.Count(ctx, bookModel); n != 0 {
			t.Errorf("expecting no books after failed inserts, got %d", n)
		}
		c := newBook("Henry IV")
		o.MustSave(ctx, c)
		d := newBook("Henry IV, Part 2")
		d.ID = c.ID
		if err := o.Insert(ctx, newBook("Richard II"), d); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expecting ErrDuplicate inserting an existing id, got %v", err)
		}
		if n, _ := o.Count(ctx, bookModel); n != 1 {
			t.Errorf("expecting InsertMany to be atomic, got %d books", n)
		}
	})
}

func TestInitSignals(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		b := newBook("Twelfth Night")
		o.MustSave(ctx, b)
		var events []string
		l1 := Signals.PreInit.ConnectFunc(func(e *signals.Event) error {
			doc := e.Instance.(*Book)
			data, ok := e.Arg("values").([]byte)
			if !ok || len(data) == 0 {
				t.Errorf("expecting raw values in pre_init, got %v", e.Arg("values"))
			}
			events = append(events, fmt.Sprintf("pre_init %s %q", e.Arg("id"), doc.Title))
			return nil
		}, bookModel)
		defer l1.Remove()
		l2 := Signals.PostInit.ConnectFunc(func(e *signals.Event) error {
			events = append(events, fmt.Sprintf("post_init %s %q", e.Instance.(*Book).ID, e.Instance.(*Book).Title))
			return nil
		}, bookModel)
		defer l2.Remove()
		var b2 Book
		if err := o.Get(ctx, b.ID, &b2); err != nil {
			t.Fatal(err)
		}
		expect := []string{
			fmt.Sprintf("pre_init %s %q", b.ID, ""),
			fmt.Sprintf("post_init %s %q", b.ID, "Twelfth Night"),
		}
		if diff := cmp.Diff(expect, events); diff != "" {
			t.Errorf("unexpected events (-want +got):\n%s", diff)
		}
	})
}

func TestReloadResetsFields(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		b := newBook("As You Like It")
		b.Tags = nil
		o.MustSave(ctx, b)
		b.Title = "Much Ado About Nothing"
		b.Tags = []string{"changed"}
		b.Published = nil
		if err := o.Reload(ctx, b); err != nil {
			t.Fatal(err)
		}
		if b.Title != "As You Like It" || len(b.Tags) != 0 || b.Published == nil {
			t.Errorf("expecting stored values after reloading, got %+v", b)
		}
		if err := o.Reload(ctx, &Book{}); !errors.Is(err, ErrNoID) {
			t.Errorf("expecting ErrNoID, got %v", err)
		}
	})
}

func TestEach(t *testing.T) {
	runTest(t, func(t *testing.T, o *ODM) {
		ctx := context.Background()
		ids := []string{"c", "a", "b"}
		for _, id := range ids {
			b := newBook("Book " + id)
			b.ID = id
			o.MustSave(ctx, b)
		}
		var titles []string
		err := o.Each(ctx, bookModel, func(doc interface{}) error {
			titles = append(titles, doc.(*Book).Title)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"Book a", "Book b", "Book c"}, titles); diff != "" {
			t.Errorf("unexpected iteration order (-want +got):\n%s", diff)
		}
		titles = nil
		err = o.Each(ctx, bookModel, func(doc interface{}) error {
			titles = append(titles, doc.(*Book).Title)
			return Stop
		})
		if err != nil || len(titles) != 1 {
			t.Errorf("expecting Stop to end the iteration without errors, got %v, %v", titles, err)
		}
		errFail := errors.New("fail")
		err = o.Each(ctx, bookModel, func(doc interface{}) error {
			return errFail
		})
		if !errors.Is(err, errFail) {
			t.Errorf("expecting error %v, got %v instead", errFail, err)
		}
	})
}

func TestInvalidDocuments(t *testing.T) {
	o := newODM(t, "memory://")
	ctx := context.Background()
	type unregistered struct {
		Document
		Name string
	}
	if _, err := o.Save(ctx, &unregistered{}); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expecting ErrNotRegistered, got %v", err)
	}
	if _, err := o.Save(ctx, Book{Title: "value"}); err == nil {
		t.Error("expecting an error when saving a non-pointer")
	}
	if _, err := o.Save(ctx, (*Book)(nil)); err == nil {
		t.Error("expecting an error when saving a nil pointer")
	}
	if err := o.Get(ctx, "", &Book{}); !errors.Is(err, ErrNoID) {
		t.Errorf("expecting ErrNoID, got %v", err)
	}
	if err := o.Get(ctx, "missing", &Book{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expecting ErrNotFound, got %v", err)
	}
}

func TestNewErrors(t *testing.T) {
	for url, msg := range map[string]string{
		"postgres://dbname=odm":  `import package "github.com/rainycape/odm/odm/driver/postgres"`,
		"nonexistent://":         `no ODM driver named "nonexistent"`,
		"memory://?codec=bogus":  `no codec named "bogus"`,
		"memory://?shards=bogus": `error opening ODM driver "memory"`,
	} {
		_, err := New(config.MustParseURL(url))
		if err == nil || !strings.Contains(err.Error(), msg) {
			t.Errorf("expecting error containing %q opening %s, got %v", msg, url, err)
		}
	}
}

func TestWithCodec(t *testing.T) {
	o, err := New(config.MustParseURL("memory://?codec=json"), WithCodec(codec.Get("gob")))
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()
	if o.Codec().Name() != "gob" {
		t.Errorf("expecting WithCodec to override the URL, got %s", o.Codec().Name())
	}
}

type Edition struct {
	Document
	Number int     `odm:"number,required"`
	Signed bool    `odm:"signed,required"`
	Editor *string `odm:"editor,required"`
}

var editionModel = MustRegister((*Edition)(nil), nil)

func TestRequiredZeroValues(t *testing.T) {
	editor := ""
	e := &Edition{Editor: &editor}
	if err := editionModel.validate(reflect.ValueOf(e).Elem(), e); err != nil {
		t.Errorf("expecting 0, false and a non-nil pointer to satisfy required, got %v", err)
	}
	e.Editor = nil
	err := editionModel.validate(reflect.ValueOf(e).Elem(), e)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "editor" {
		t.Errorf("expecting a required error for editor, got %v", err)
	}
}

func TestClosed(t *testing.T) {
	o, err := New(config.MustParseURL("memory://"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := o.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	b := newBook("Cymbeline")
	o.MustSave(ctx, b)
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Save(ctx, b); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Save, got %v", err)
	}
	if err := o.Get(ctx, b.ID, &Book{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Get, got %v", err)
	}
	if err := o.Delete(ctx, b); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Delete, got %v", err)
	}
	if err := o.Insert(ctx, newBook("Pericles")); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Insert, got %v", err)
	}
	if _, err := o.Count(ctx, bookModel); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Count, got %v", err)
	}
	if err := o.Each(ctx, bookModel, func(interface{}) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Each, got %v", err)
	}
	if err := o.Initialize(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expecting ErrClosed from Initialize, got %v", err)
	}
	if err := o.Close(); err != nil {
		t.Errorf("expecting a second Close to succeed, got %v", err)
	}
}
