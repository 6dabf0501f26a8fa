package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalRecords(t *testing.T) {
	t.Run("fields in declared order without html escaping", func(t *testing.T) {
		got := CanonicalRecords([]Record{{Type: "TEXT", Name: ".", Value: "a<b>&c"}})
		assert.Equal(t, `[{"type":"TEXT","name":".","value":"a<b>&c"}]`, string(got))
	})

	t.Run("line and paragraph separators stay raw", func(t *testing.T) {
		got := CanonicalRecords([]Record{{Type: "TEXT", Name: ".", Value: "a\u2028b\u2029c<&>"}})
		assert.Equal(t, "[{\"type\":\"TEXT\",\"name\":\".\",\"value\":\"a\u2028b\u2029c<&>\"}]", string(got))
	})

	t.Run("escaped backslash before u2028 text is kept", func(t *testing.T) {
		got := CanonicalRecords([]Record{{Type: "TEXT", Name: ".", Value: `x\u2028`}})
		assert.Equal(t, `[{"type":"TEXT","name":".","value":"x\\u2028"}]`, string(got))

		doc, err := EncodeRecords(RecordsDocument{Records: []Record{{Type: "TEXT", Name: ".", Value: "p\u2029q"}}, Signature: "00"})
		require.NoError(t, err)
		decoded, err := DecodeRecords(doc)
		require.NoError(t, err)
		assert.Equal(t, "p\u2029q", decoded.Records[0].Value)
	})

	t.Run("nil and empty both encode as an empty array", func(t *testing.T) {
		assert.Equal(t, "[]", string(CanonicalRecords(nil)))
		assert.Equal(t, "[]", string(CanonicalRecords([]Record{})))
	})

	t.Run("order is preserved", func(t *testing.T) {
		got := CanonicalRecords([]Record{
			{Type: "ANT", Name: ".", Value: "b"},
			{Type: "TEXT", Name: "www", Value: "a"},
		})
		assert.Equal(t, `[{"type":"ANT","name":".","value":"b"},{"type":"TEXT","name":"www","value":"a"}]`, string(got))
	})
}

func TestEncodeDecodeDocuments(t *testing.T) {
	owner, err := EncodeOwner(OwnerDocument{PublicKey: "abcd"})
	require.NoError(t, err)
	assert.Equal(t, `{"publicKey":"abcd"}`, string(owner))

	decoded, err := DecodeOwner(owner)
	require.NoError(t, err)
	assert.Equal(t, "abcd", decoded.PublicKey)

	doc := RecordsDocument{Records: []Record{{Type: "TEXT", Name: ".", Value: "hello"}}, Signature: "00ff"}
	data, err := EncodeRecords(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"records":[{"type":"TEXT","name":".","value":"hello"}],"signature":"00ff"}`, string(data))

	back, err := DecodeRecords(data)
	require.NoError(t, err)
	assert.Equal(t, doc, back)

	empty, err := EncodeRecords(RecordsDocument{Signature: "00"})
	require.NoError(t, err)
	assert.Equal(t, `{"records":[],"signature":"00"}`, string(empty))
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	records := map[string]string{
		"invalid utf-8":       "{\"records\":[],\"signature\":\"\xff\"}",
		"not json":            "hello",
		"array at top level":  `[]`,
		"null":                `null`,
		"missing records":     `{"signature":"00"}`,
		"missing signature":   `{"records":[]}`,
		"records not array":   `{"records":"x","signature":"00"}`,
		"record missing name": `{"records":[{"type":"TEXT","value":"v"}],"signature":"00"}`,
		"wrong value type":    `{"records":[{"type":"TEXT","name":".","value":1}],"signature":"00"}`,
		"trailing data":       `{"records":[],"signature":"00"} {}`,
		"owner document":      `{"publicKey":"abcd"}`,
	}
	for name, input := range records {
		t.Run("records: "+name, func(t *testing.T) {
			_, err := DecodeRecords([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}

	owners := map[string]string{
		"missing key":    `{}`,
		"key not string": `{"publicKey":7}`,
		"not json":       `publicKey`,
	}
	for name, input := range owners {
		t.Run("owner: "+name, func(t *testing.T) {
			_, err := DecodeOwner([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	doc, err := DecodeRecords([]byte(`{"records":[],"signature":"00","extra":true}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Records)
	assert.Equal(t, "00", doc.Signature)
}
