package naming

import (
	"strings"

	"antns/internal/network"
)

// Record types understood by resolvers. Comparison is case-insensitive.
const (
	RecordTypeText = "TEXT"
	RecordTypeANT  = "ANT"
)

// RootName denotes the domain itself.
const RootName = "."

// OwnerDocument is always the first entry of a domain's register.
type OwnerDocument struct {
	PublicKey string `json:"publicKey"`
}

// Record is one typed entry of a domain's record set. Field order is part of
// the signed encoding.
type Record struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsTarget reports whether r is the root ANT record that names the domain's
// active address.
func (r Record) IsTarget() bool {
	return strings.EqualFold(r.Type, RecordTypeANT) && r.Name == RootName
}

// RecordsDocument is a full record set plus the owner's hex signature over
// the canonical encoding of Records.
type RecordsDocument struct {
	Records   []Record `json:"records"`
	Signature string   `json:"signature"`
}

// EntryKind tags a history entry.
type EntryKind string

const (
	EntryOwner   EntryKind = "owner"
	EntryRecords EntryKind = "records"
)

// Failure explains why a records entry was excluded from resolution.
type Failure string

const (
	FailureNone      Failure = ""
	FailureDownload  Failure = "download"
	FailureParse     Failure = "parse"
	FailureSignature Failure = "signature"
)

// HistoryEntry is one classified register entry. Owner entries carry
// PublicKey; records entries carry Records and Signature when the chunk
// parsed, and Valid when the signature verified.
type HistoryEntry struct {
	Kind         EntryKind
	ChunkAddress network.ChunkAddress
	PublicKey    string
	Records      []Record
	Signature    *string
	Valid        bool
	Failure      Failure
}

// Parsed reports whether the entry decoded into a document.
func (e HistoryEntry) Parsed() bool {
	return e.Kind == EntryOwner || e.Signature != nil
}

// RecordSet is the authoritative state of a domain.
type RecordSet struct {
	Domain         string
	Records        []Record
	OwnerPublicKey string
	ChunkAddress   network.ChunkAddress
}

// Target returns the value of the first root ANT record.
func (s *RecordSet) Target() (string, bool) {
	for _, r := range s.Records {
		if r.IsTarget() {
			return r.Value, true
		}
	}
	return "", false
}

// Resolution is the resolved active address of a domain.
type Resolution struct {
	Domain         string
	Target         string
	OwnerPublicKey string
}
