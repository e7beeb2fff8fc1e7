package utf8util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hemlock-lang/hemlock/internal/utf8util"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"ascii only",
		"héllo wörld",
		"日本語のテキスト",
		"mixed ασκί and 漢字 and emoji \U0001F600",
	}
	for _, s := range cases {
		runes := utf8util.Decode(s)
		assert.Equal(t, s, utf8util.EncodeAll(runes), "round trip of %q", s)
		assert.Equal(t, len(runes), utf8util.CodepointCount(s))
	}
}

func TestByteOffsetOfKthCodepoint(t *testing.T) {
	s := "aé日b"
	assert.Equal(t, 0, utf8util.ByteOffset(s, 0))
	assert.Equal(t, 1, utf8util.ByteOffset(s, 1)) // é starts after 1-byte a
	assert.Equal(t, 3, utf8util.ByteOffset(s, 2)) // 日 starts after 2-byte é
	assert.Equal(t, 6, utf8util.ByteOffset(s, 3)) // b after 3-byte 日
	assert.Equal(t, len(s), utf8util.ByteOffset(s, 99))
}

func TestRuneAt(t *testing.T) {
	s := "aé日"
	assert.Equal(t, 'a', utf8util.RuneAt(s, 0))
	assert.Equal(t, 'é', utf8util.RuneAt(s, 1))
	assert.Equal(t, '日', utf8util.RuneAt(s, 2))
}

func TestSeqLen(t *testing.T) {
	assert.Equal(t, 1, utf8util.SeqLen('a'))
	assert.Equal(t, 2, utf8util.SeqLen(0xC3)) // lead byte of é
	assert.Equal(t, 3, utf8util.SeqLen(0xE6)) // lead byte of 日
	assert.Equal(t, 4, utf8util.SeqLen(0xF0)) // lead byte of an emoji
	assert.Equal(t, 0, utf8util.SeqLen(0x80)) // continuation byte cannot start a sequence
}

func TestValidRejectsTruncatedSequence(t *testing.T) {
	assert.True(t, utf8util.Valid("héllo"))
	assert.False(t, utf8util.Valid(string([]byte{0xC3})))
	assert.False(t, utf8util.Valid(string([]byte{0xFF, 0xFE})))
}

func TestIsASCII(t *testing.T) {
	assert.True(t, utf8util.IsASCII("plain"))
	assert.False(t, utf8util.IsASCII("plaîn"))
}
