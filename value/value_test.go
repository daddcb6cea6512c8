package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStringClassification(t *testing.T) {
	cases := []struct {
		raw      string
		wantKind Kind
	}{
		{"hello", KindString},
		{"123", KindInteger},
		{"-45", KindInteger},
		{"007", KindString},
		{"-0", KindInteger},
		{"", KindString},
	}
	for _, c := range cases {
		v := NewString([]byte(c.raw))
		if v.Kind() != c.wantKind {
			t.Errorf("NewString(%q).Kind() = %v, want %v", c.raw, v.Kind(), c.wantKind)
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	v := NewString([]byte("hello"))
	if string(v.Bytes()) != "hello" {
		t.Errorf("Bytes() = %q, want %q", v.Bytes(), "hello")
	}
	v = NewString([]byte("-45"))
	if string(v.Bytes()) != "-45" {
		t.Errorf("Bytes() = %q, want %q", v.Bytes(), "-45")
	}
	v = NewString([]byte("-0"))
	if string(v.Bytes()) != "0" {
		t.Errorf("Bytes() = %q, want %q (normalized)", v.Bytes(), "0")
	}
}

func TestNewListIsEmpty(t *testing.T) {
	v := NewList()
	if !v.IsList() {
		t.Fatal("NewList() should report IsList() true")
	}
	if v.List().Len() != 0 {
		t.Errorf("new list Len() = %d, want 0", v.List().Len())
	}
}

func TestKindStringReplies(t *testing.T) {
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "integer", KindInteger.String())
	assert.Equal(t, "list", KindList.String())
}
