package odm

import (
	"github.com/rainycape/odm/signals"
)

// Signals declares the signals emitted by this package. The Sender of
// every event is the *Model of the document and the Instance is the
// document itself, always a pointer. See the signals package for how
// to connect receivers. Receivers of the signals emitted before an
// operation can abort it by returning an error.
var Signals = struct {
	// PreInit is emitted when a document is being loaded from
	// the database, before its fields are set. The raw document
	// data is available in the "values" argument and its id in
	// the "id" one.
	PreInit *signals.Signal
	// PostInit is emitted after a document has been loaded
	// from the database.
	PostInit *signals.Signal
	// PreSave is emitted by ODM.Save before the document is
	// validated.
	PreSave *signals.Signal
	// PreSavePostValidation is emitted by ODM.Save after the
	// document has been validated but before it's written.
	// Created is true when the document has no id yet.
	PreSavePostValidation *signals.Signal
	// PostSave is emitted by ODM.Save after the document has been
	// written. Created is true when the document was inserted,
	// false when an existing one was updated.
	PostSave *signals.Signal
	// PreDelete is emitted by ODM.Delete before the document is
	// removed.
	PreDelete *signals.Signal
	// PostDelete is emitted by ODM.Delete after the document
	// has been removed. The document still holds its field
	// values.
	PostDelete *signals.Signal
	// PreBulkInsert is emitted by ODM.Insert before the documents,
	// available in Instances, are validated and written.
	PreBulkInsert *signals.Signal
	// PostBulkInsert is emitted by ODM.Insert after all the
	// documents have been written, with Loaded set to true.
	PostBulkInsert *signals.Signal
}{
	signals.New("pre_init"),
	signals.New("post_init"),
	signals.New("pre_save"),
	signals.New("pre_save_post_validation"),
	signals.New("post_save"),
	signals.New("pre_delete"),
	signals.New("post_delete"),
	signals.New("pre_bulk_insert"),
	signals.New("post_bulk_insert"),
}
