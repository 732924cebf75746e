// Package codec includes the interfaces and functions for implementing
// and using document codecs, which transform documents into the bytes
// stored by the ODM drivers and back.
//
// Codecs for "json", "gob", "msgpack" and "bson" are already provided by
// this package, but users can define their own ones. See the Codec interface
// and the Register function.
package codec
