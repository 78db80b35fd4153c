package pdfval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeScalars(t *testing.T) {
	assert.Equal(t, "12", Serialize(Int(12), 0))
	assert.Equal(t, "3.5", Serialize(Real(3.5), 0))
	assert.Equal(t, "1", Serialize(Real(1.0000001), 0))
	assert.Equal(t, "true", Serialize(Bool(true), 0))
	assert.Equal(t, "null", Serialize(Null{}, 0))
	assert.Equal(t, "/Catalog", Serialize(Name("Catalog"), 0))
	assert.Equal(t, "3 0 R", Serialize(Ref{Num: 3}, 0))
}

func TestSerializeLiteralStringASCII(t *testing.T) {
	assert.Equal(t, "(Hello)", Serialize(LiteralString("Hello"), 0))
	assert.Equal(t, `(a\(b\))`, Serialize(LiteralString("a(b)"), 0))
}

func TestSerializeLiteralStringUnicodeBecomesHex(t *testing.T) {
	got := Serialize(LiteralString("Täst Tütle"), 0)
	require.Equal(t, byte('<'), got[0])
	assert.Equal(t, "<FEFF0054006400E40073007400200054FC0074006C0065>", got)
}

func TestHexStringRoundTrip(t *testing.T) {
	b := []byte{0x00, 0xFE, 0xFF, 0x10, 0x20}
	got := Serialize(HexString(b), 0)
	assert.Equal(t, "<00FEFF1020>", got)
}

func TestUTF16BERoundTrip(t *testing.T) {
	for _, s := range []string{"hello", "Täst Tütle", "日本語", ""} {
		assert.Equal(t, s, FromUTF16BE(ToUTF16BE(s)))
	}
}

func TestSerializeDict(t *testing.T) {
	d := NewDict("Type", Name("Catalog"), "Pages", Ref{Num: 2})
	got := Serialize(d, 0)
	assert.Equal(t, "<<\n  /Type /Catalog\n  /Pages 2 0 R\n>>", got)
}

func TestSerializeArray(t *testing.T) {
	a := Array{Int(1), Int(2), Ref{Num: 3}}
	assert.Equal(t, "[1 2 3 0 R]", Serialize(a, 0))
}

func TestSerializeObjectBytesStream(t *testing.T) {
	d := NewDict("Length", Int(5))
	obj := Object{Num: 4, Value: d, Stream: []byte("hello")}
	got := SerializeObjectBytes(obj)
	assert.Contains(t, string(got), "4 0 obj\n")
	assert.Contains(t, string(got), "stream\nhello\nendstream\nendobj\n")
}
