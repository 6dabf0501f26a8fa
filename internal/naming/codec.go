package naming

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// CanonicalRecords is the exact byte string signatures are computed over:
// compact JSON, fields in declared order, no HTML escaping, no trailing
// newline, and [] for an empty set.
func CanonicalRecords(records []Record) []byte {
	if records == nil {
		records = []Record{}
	}
	// Record holds only strings, so encoding cannot fail.
	out, _ := marshal(records)
	return out
}

func EncodeOwner(doc OwnerDocument) ([]byte, error) {
	return marshal(doc)
}

func EncodeRecords(doc RecordsDocument) ([]byte, error) {
	if doc.Records == nil {
		doc.Records = []Record{}
	}
	return marshal(doc)
}

type ownerWire struct {
	PublicKey *string `json:"publicKey"`
}

type recordWire struct {
	Type  *string `json:"type"`
	Name  *string `json:"name"`
	Value *string `json:"value"`
}

type recordsWire struct {
	Records   *[]recordWire `json:"records"`
	Signature *string       `json:"signature"`
}

// DecodeOwner parses an owner document. Any schema mismatch is reported as
// ErrMalformedDocument.
func DecodeOwner(data []byte) (OwnerDocument, error) {
	var w ownerWire
	if err := unmarshalStrict(data, &w); err != nil {
		return OwnerDocument{}, err
	}
	if w.PublicKey == nil {
		return OwnerDocument{}, fmt.Errorf("%w: missing publicKey", ErrMalformedDocument)
	}
	return OwnerDocument{PublicKey: *w.PublicKey}, nil
}

// DecodeRecords parses a records document. Any schema mismatch is reported as
// ErrMalformedDocument.
func DecodeRecords(data []byte) (RecordsDocument, error) {
	var w recordsWire
	if err := unmarshalStrict(data, &w); err != nil {
		return RecordsDocument{}, err
	}
	if w.Records == nil {
		return RecordsDocument{}, fmt.Errorf("%w: missing records", ErrMalformedDocument)
	}
	if w.Signature == nil {
		return RecordsDocument{}, fmt.Errorf("%w: missing signature", ErrMalformedDocument)
	}
	records := make([]Record, 0, len(*w.Records))
	for i, r := range *w.Records {
		if r.Type == nil || r.Name == nil || r.Value == nil {
			return RecordsDocument{}, fmt.Errorf("%w: record %d is incomplete", ErrMalformedDocument, i)
		}
		records = append(records, Record{Type: *r.Type, Name: *r.Name, Value: *r.Value})
	}
	return RecordsDocument{Records: records, Signature: *w.Signature}, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators undoes the \u2028 and \u2029 escapes that
// encoding/json applies even with HTML escaping off, so both characters are
// signed as raw UTF-8. An escaped backslash followed by "u2028" is left alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if esc := b[i+1:]; len(esc) >= 5 && esc[0] == 'u' && (string(esc[1:5]) == "2028" || string(esc[1:5]) == "2029") {
			r := '\u2028'
			if esc[4] == '9' {
				r = '\u2029'
			}
			out = utf8.AppendRune(out, r)
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

func unmarshalStrict(data []byte, v any) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: invalid utf-8", ErrMalformedDocument)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrMalformedDocument)
	}
	return nil
}
