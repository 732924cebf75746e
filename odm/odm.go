package odm

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/log"
	"github.com/rainycape/odm/odm/codec"
	"github.com/rainycape/odm/odm/driver"
	"github.com/rainycape/odm/odm/driver/instrumented"
	"github.com/rainycape/odm/signals"
)

var imports = map[string]string{
	"memory":     "github.com/rainycape/odm/odm/driver/memory",
	"sqlite":     "github.com/rainycape/odm/odm/driver/sqlite",
	"sqlite3":    "github.com/rainycape/odm/odm/driver/sqlite",
	"postgres":   "github.com/rainycape/odm/odm/driver/postgres",
	"postgresql": "github.com/rainycape/odm/odm/driver/postgres",
	"dynamodb":   "github.com/rainycape/odm/odm/driver/dynamodb",
}

// DefaultCodec is the name of the codec used when neither the
// database URL nor the options select one.
const DefaultCodec = "json"

// ODM saves, loads and deletes documents using a driver. An ODM is
// safe for concurrent use, so applications should usually create one
// when starting up (or use Connect) and share it.
type ODM struct {
	driver driver.Driver
	codec  codec.Codec
	logger *log.Logger
}

// New returns a new ODM using the driver named by the URL scheme,
// e.g. sqlite:///var/lib/app/odm.db. The driver package must have
// been imported. The codec option in the URL selects the codec for
// encoding the documents (json by default).
func New(url *config.URL, opts ...Option) (*ODM, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	c := s.codec
	if c == nil {
		name := url.Get("codec")
		if name == "" {
			name = DefaultCodec
		}
		if c = codec.Get(name); c == nil {
			return nil, fmt.Errorf("no codec named %q (available codecs are %v)", name, codec.Names())
		}
	}
	name := url.Scheme
	opener := driver.Get(name)
	if opener == nil {
		if imp, ok := imports[name]; ok {
			return nil, fmt.Errorf("please, import package %q to use driver %q", imp, name)
		}
		return nil, fmt.Errorf("no ODM driver named %q", name)
	}
	drv, err := opener(url)
	if err != nil {
		return nil, fmt.Errorf("error opening ODM driver %q: %w", name, err)
	}
	if s.tracerProvider != nil || s.meterProvider != nil {
		idrv, err := instrumented.New(drv, s.tracerProvider, s.meterProvider)
		if err != nil {
			drv.Close()
			return nil, err
		}
		drv = idrv
	}
	if err := drv.Check(context.Background()); err != nil {
		drv.Close()
		return nil, err
	}
	o := &ODM{
		driver: drv,
		codec:  c,
	}
	o.SetLogger(s.logger)
	return o, nil
}

// Initialize prepares the database for storing the documents of
// every registered model. It must be called after all the models
// have been registered and before any documents are stored.
func (o *ODM) Initialize(ctx context.Context) error {
	if o.driver == nil {
		return ErrClosed
	}
	models := Models()
	dm := make([]driver.Model, len(models))
	for ii, v := range models {
		if err := o.codec.Try(v.storage); err != nil {
			return fmt.Errorf("can't store %s documents: %w", v, err)
		}
		dm[ii] = v
	}
	o.debugf("Initializing %d models", len(dm))
	return o.driver.Initialize(ctx, dm)
}

// MustInitialize works like Initialize, but panics if there's
// an error.
func (o *ODM) MustInitialize(ctx context.Context) {
	if err := o.Initialize(ctx); err != nil {
		panic(err)
	}
}

// document returns the model and the struct value for doc, which
// must be a non-nil pointer to a registered document type.
func (o *ODM) document(doc interface{}) (*Model, reflect.Value, Documenter, error) {
	if o.driver == nil {
		return nil, reflect.Value{}, nil, ErrClosed
	}
	val := reflect.ValueOf(doc)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, reflect.Value{}, nil, fmt.Errorf("documents must be passed as non-nil pointers, not %T", doc)
	}
	elem := val.Elem()
	m := modelOf(elem.Type())
	if m == nil {
		return nil, reflect.Value{}, nil, fmt.Errorf("%T: %w", doc, ErrNotRegistered)
	}
	return m, elem, doc.(Documenter), nil
}

// Save validates and stores the document. Documents without an id
// are assigned a new one and inserted, while documents with an id
// replace the stored one or are inserted if it does not exist. The
// created return value indicates whether the document was inserted.
//
// Save emits PreSave, PreSavePostValidation and PostSave.
func (o *ODM) Save(ctx context.Context, doc interface{}) (created bool, err error) {
	m, val, d, err := o.document(doc)
	if err != nil {
		return false, err
	}
	if err := Signals.PreSave.Send(&signals.Event{Sender: m, Instance: doc}); err != nil {
		return false, err
	}
	if err := m.validate(val, doc); err != nil {
		return false, err
	}
	id := d.DocumentID()
	if err := Signals.PreSavePostValidation.Send(&signals.Event{Sender: m, Instance: doc, Created: id == ""}); err != nil {
		return false, err
	}
	data, err := m.encode(o.codec, val)
	if err != nil {
		return false, err
	}
	if id == "" {
		id = uuid.NewString()
		if err := o.driver.Insert(ctx, m, id, data); err != nil {
			return false, fmt.Errorf("inserting %s: %w", m, err)
		}
		d.SetDocumentID(id)
		created = true
	} else {
		updated, err := o.driver.Update(ctx, m, id, data)
		if err != nil {
			return false, fmt.Errorf("updating %s %s: %w", m, id, err)
		}
		if !updated {
			if err := o.driver.Insert(ctx, m, id, data); err != nil {
				return false, fmt.Errorf("inserting %s %s: %w", m, id, err)
			}
			created = true
		}
	}
	o.debugf("Saved %s %s (created %v)", m, id, created)
	if err := Signals.PostSave.Send(&signals.Event{Sender: m, Instance: doc, Created: created}); err != nil {
		return created, err
	}
	return created, nil
}

// MustSave works like Save, but panics if there's an error.
func (o *ODM) MustSave(ctx context.Context, doc interface{}) bool {
	created, err := o.Save(ctx, doc)
	if err != nil {
		panic(err)
	}
	return created
}

// Insert stores several new documents of the same model. Documents
// without an id are assigned a new one. If any document fails
// validation, nothing is written. Drivers with the CAP_TRANSACTION
// capability either insert all the documents or none of them.
//
// Insert emits PreBulkInsert and PostBulkInsert.
func (o *ODM) Insert(ctx context.Context, docs ...interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	var m *Model
	vals := make([]reflect.Value, len(docs))
	ds := make([]Documenter, len(docs))
	for ii, v := range docs {
		dm, val, d, err := o.document(v)
		if err != nil {
			return err
		}
		if m != nil && dm != m {
			return fmt.Errorf("can't insert documents of different models (%s and %s)", m, dm)
		}
		m = dm
		vals[ii] = val
		ds[ii] = d
	}
	if err := Signals.PreBulkInsert.Send(&signals.Event{Sender: m, Instances: docs}); err != nil {
		return err
	}
	var errs []error
	for ii, v := range vals {
		if err := m.validate(v, docs[ii]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	items := make([]driver.Item, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for ii, v := range vals {
		id := ds[ii].DocumentID()
		if id == "" {
			id = uuid.NewString()
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("inserting %s: %w: %s", m, ErrDuplicate, id)
		}
		seen[id] = struct{}{}
		data, err := m.encode(o.codec, v)
		if err != nil {
			return err
		}
		items[ii] = driver.Item{ID: id, Data: data}
	}
	if err := o.driver.InsertMany(ctx, m, items); err != nil {
		return fmt.Errorf("inserting %s: %w", m, err)
	}
	for ii, v := range items {
		ds[ii].SetDocumentID(v.ID)
	}
	o.debugf("Inserted %d %s documents", len(items), m)
	return Signals.PostBulkInsert.Send(&signals.Event{Sender: m, Instances: docs, Loaded: true})
}

// MustInsert works like Insert, but panics if there's an error.
func (o *ODM) MustInsert(ctx context.Context, docs ...interface{}) {
	if err := o.Insert(ctx, docs...); err != nil {
		panic(err)
	}
}

// Delete removes the document from the database. The document keeps
// its field values, including its id. Deleting a document without an
// id returns ErrNoID, while deleting a document which does not exist
// returns ErrNotFound.
//
// Delete emits PreDelete and, if the document was removed, PostDelete.
func (o *ODM) Delete(ctx context.Context, doc interface{}) error {
	m, _, d, err := o.document(doc)
	if err != nil {
		return err
	}
	id := d.DocumentID()
	if id == "" {
		return fmt.Errorf("can't delete %s: %w", m, ErrNoID)
	}
	if err := Signals.PreDelete.Send(&signals.Event{Sender: m, Instance: doc}); err != nil {
		return err
	}
	deleted, err := o.driver.Delete(ctx, m, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", m, id, err)
	}
	if !deleted {
		return fmt.Errorf("deleting %s %s: %w", m, id, ErrNotFound)
	}
	o.debugf("Deleted %s %s", m, id)
	return Signals.PostDelete.Send(&signals.Event{Sender: m, Instance: doc})
}

// MustDelete works like Delete, but panics if there's an error.
func (o *ODM) MustDelete(ctx context.Context, doc interface{}) {
	if err := o.Delete(ctx, doc); err != nil {
		panic(err)
	}
}

// Reload sets every field in the document to the value stored
// in the database. It returns ErrNotFound if the document does
// not exist anymore.
//
// Reload emits PreInit and PostInit.
func (o *ODM) Reload(ctx context.Context, doc interface{}) error {
	m, val, d, err := o.document(doc)
	if err != nil {
		return err
	}
	id := d.DocumentID()
	if id == "" {
		return fmt.Errorf("can't reload %s: %w", m, ErrNoID)
	}
	return o.get(ctx, m, id, val, doc)
}

// Get loads the document with the given id into out, which must be
// a pointer to a registered document type. It returns ErrNotFound if
// there's no such document.
//
// Get emits PreInit and PostInit.
func (o *ODM) Get(ctx context.Context, id string, out interface{}) error {
	m, val, _, err := o.document(out)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("can't get %s: %w", m, ErrNoID)
	}
	return o.get(ctx, m, id, val, out)
}

func (o *ODM) get(ctx context.Context, m *Model, id string, val reflect.Value, doc interface{}) error {
	data, err := o.driver.Get(ctx, m, id)
	if err != nil {
		return fmt.Errorf("loading %s %s: %w", m, id, err)
	}
	return o.load(m, id, data, val, doc)
}

// load sets the document fields from data, emitting the init signals.
func (o *ODM) load(m *Model, id string, data []byte, val reflect.Value, doc interface{}) error {
	if err := Signals.PreInit.Send(&signals.Event{
		Sender:   m,
		Instance: doc,
		Args: map[string]interface{}{
			"id":     id,
			"values": data,
		},
	}); err != nil {
		return err
	}
	if err := m.decode(o.codec, data, val); err != nil {
		return err
	}
	doc.(Documenter).SetDocumentID(id)
	return Signals.PostInit.Send(&signals.Event{Sender: m, Instance: doc})
}

// Count returns the number of stored documents of the given model.
func (o *ODM) Count(ctx context.Context, m *Model) (uint64, error) {
	if o.driver == nil {
		return 0, ErrClosed
	}
	return o.driver.Count(ctx, m)
}

// Each calls fn for every stored document of the given model, sorted
// by id. Each document is a new pointer to the model type. If fn
// returns an error, the iteration stops and the error is returned,
// unless it's Stop.
//
// Each emits PreInit and PostInit for every document.
func (o *ODM) Each(ctx context.Context, m *Model, fn func(doc interface{}) error) error {
	if o.driver == nil {
		return ErrClosed
	}
	err := o.driver.Range(ctx, m, func(ctx context.Context, id string, data []byte) (bool, error) {
		doc, val, _ := m.newDocument()
		if err := o.load(m, id, data, val, doc); err != nil {
			return false, err
		}
		if err := fn(doc); err != nil {
			return false, err
		}
		return true, nil
	})
	if errors.Is(err, Stop) {
		err = nil
	}
	return err
}

// Close closes the database connection. Since the ODM is safe for
// concurrent use and does its own connection pooling, you should
// typically only call it when shutting down. Any operation after
// Close returns ErrClosed.
func (o *ODM) Close() error {
	if o.driver != nil {
		err := o.driver.Close()
		o.driver = nil
		return err
	}
	return nil
}

// Driver returns the underlying driver.
func (o *ODM) Driver() driver.Driver {
	return o.driver
}

// Codec returns the codec used for encoding documents.
func (o *ODM) Codec() codec.Codec {
	return o.codec
}

// Logger returns the logger for this ODM. By default, it's
// nil.
func (o *ODM) Logger() *log.Logger {
	return o.logger
}

// SetLogger sets the logger for this ODM. If the underlying driver
// has a SetLogger(*log.Logger) method (the sql based drivers do),
// the logger will be set for it too.
func (o *ODM) SetLogger(logger *log.Logger) {
	o.logger = logger
	if drvLogger, ok := o.driver.(interface{ SetLogger(*log.Logger) }); ok {
		drvLogger.SetLogger(logger)
	}
}

func (o *ODM) debugf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Debugf(format, args...)
	}
}
