package model

import (
	"crypto/sha256"
	"encoding/base64"
)

// Names of the fields derived from the mbox envelope ("From ") line and the
// message body. All other field names come verbatim from message headers.
const (
	FieldSender     = "Sender"
	FieldDate       = "Message Date"
	FieldSenderInfo = "Sender Info"
	FieldBody       = "Body"
)

// Field is a single named value inside a Record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record represents one parsed email message as an ordered list of fields.
// Field names are not unique; a repeated header produces repeated fields in
// encounter order. A Record is append-only while a message is being parsed
// and must not be mutated after it has been handed to a sink.
type Record struct {
	fields []Field
}

func NewRecord() *Record {
	return &Record{}
}

// Add appends a field, preserving insertion order.
func (r *Record) Add(name, value string) {
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Fields returns the fields in insertion order. Callers must not modify the
// returned slice.
func (r *Record) Fields() []Field {
	return r.fields
}

// Get returns the value of the first field with the given name.
func (r *Record) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Hash returns a content hash of the record, used for duplicate detection
// across runs.
func (r *Record) Hash() string {
	h := sha256.New()
	for _, f := range r.fields {
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
		h.Write([]byte(f.Value))
		h.Write([]byte{'\n'})
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Envelope wraps a record alongside an optional error encountered while
// producing it.
type Envelope struct {
	Record *Record
	Err    error
}
