package query_test

import (
	"strings"
	"testing"

	"github.com/advdv/bdispatch/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderGet(t *testing.T) {
	dec := query.New([]byte("a=1&b=2&c=3&d=4&b=5&e&f=&g=1234567890&h"))

	for _, tt := range []struct {
		name string
		exp  []string
	}{
		{"a", []string{"1"}},
		{"b", []string{"2", "5"}},
		{"c", []string{"3"}},
		{"e", []string{""}},
		{"f", []string{""}},
		{"g", []string{"1234567890"}},
		{"h", []string{""}},
		{"not", nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exp, dec.Values(tt.name))
			assert.Len(t, dec.Get(tt.name), len(tt.exp))
			assert.Equal(t, tt.exp != nil, dec.Has(tt.name))
		})
	}

	assert.Equal(t, 9, dec.Len())
}

func TestDecoderTriples(t *testing.T) {
	dec := query.New([]byte("ab=1&e&f="))

	assert.Equal(t, []query.RangeTriple{
		{Start: 0, Middle: 3, End: 4},
		{Start: 5, Middle: 6, End: 6},
		{Start: 7, Middle: 9, End: 9},
	}, dec.Triples())

	t.Run("should not overlap and follow scan order", func(t *testing.T) {
		prev := -1
		for _, tr := range dec.Triples() {
			assert.Greater(t, tr.Start, prev)
			assert.LessOrEqual(t, tr.Start, tr.Middle)
			assert.LessOrEqual(t, tr.Middle, tr.End)
			prev = tr.End
		}
	})
}

func TestDecoderEdgeCases(t *testing.T) {
	t.Run("should skip empty segments", func(t *testing.T) {
		dec := query.New([]byte("&&a=1&&"))
		assert.Equal(t, 1, dec.Len())
		assert.Equal(t, []string{"1"}, dec.Values("a"))
	})

	t.Run("should keep '=' inside values", func(t *testing.T) {
		dec := query.New([]byte("k=a=b"))
		v, ok := dec.Value("k")
		require.True(t, ok)
		assert.Equal(t, "a=b", v)
	})

	t.Run("should allow empty names", func(t *testing.T) {
		dec := query.New([]byte("=x"))
		assert.Equal(t, []string{"x"}, dec.Values(""))
	})

	t.Run("zero value should be usable", func(t *testing.T) {
		var dec query.Decoder
		assert.Nil(t, dec.Get("a"))
		_, ok := dec.Value("a")
		assert.False(t, ok)
	})

	t.Run("should alias the input bytes", func(t *testing.T) {
		in := []byte("a=xyz")
		got := query.New(in).Get("a")
		require.Len(t, got, 1)
		assert.Same(t, &in[2], &got[0][0])
	})
}

func TestDecoderUnescaped(t *testing.T) {
	dec := query.New([]byte("q=hello+world&p=%2Fpath%3F&bad=%zz"))

	assert.Equal(t, []string{"hello world"}, dec.Unescaped("q"))
	assert.Equal(t, []string{"/path?"}, dec.Unescaped("p"))
	assert.Equal(t, []string{"%zz"}, dec.Unescaped("bad"))
}

func TestDecoderEach(t *testing.T) {
	dec := query.New([]byte("a=1&b&c=3"))

	var names []string
	dec.Each(func(name string, value []byte) bool {
		names = append(names, name+":"+string(value))
		return name != "b"
	})

	assert.Equal(t, []string{"a:1", "b:"}, names)
}

func TestDecoderAlphabet(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"

	pairs := make([]string, 0, len(alphabet))
	for i := range len(alphabet) {
		pairs = append(pairs, "abc"+alphabet[i:i+1]+"="+alphabet[i:]+alphabet[:i])
	}

	dec := query.New([]byte(strings.Join(pairs, "&")))
	for i := range len(alphabet) {
		v, ok := dec.Value("abc" + alphabet[i:i+1])
		require.True(t, ok)
		assert.Equal(t, alphabet[i:]+alphabet[:i], v)
	}
}
