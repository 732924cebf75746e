// Package odm implements a small object-document mapper.
//
// Document types are structs embedding Document, registered with
// Register. Documents are stored by a driver (see the odm/driver
// subpackages) as the encoding of their fields, keyed by their id:
//
//	type Author struct {
//	    odm.Document
//	    Name string `odm:"name,required,max_length:40"`
//	}
//
//	var AuthorModel = odm.MustRegister((*Author)(nil), nil)
//
//	db, err := odm.New(config.MustParseURL("sqlite:///var/lib/app/odm.db"))
//	...
//	if err := db.Initialize(ctx); err != nil {
//	    ...
//	}
//	created, err := db.Save(ctx, &Author{Name: "Bill Shakespeare"})
//
// Every operation emits the lifecycle signals declared in Signals,
// using the document *Model as the sender, so receivers can be
// connected for a single model:
//
//	odm.Signals.PostSave.ConnectFunc(func(e *signals.Event) error {
//	    fmt.Println("saved", e.Instance, e.Created)
//	    return nil
//	}, AuthorModel)
//
// Receivers of the pre_* signals can abort the operation by
// returning an error.
package odm
