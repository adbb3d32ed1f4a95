package sharetoken

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRoundTrip(t *testing.T) {
	records := []Record{
		{Version: 1, HTML: "<p>hi</p>", CreatedAt: 1700000000000},
		{Version: 1, HTML: "", CreatedAt: 0},
		{Version: 2, HTML: "<p>héllo wörld 日本語 🚀</p>", CreatedAt: -5},
		{Version: 1, HTML: "<script>if (a < b && c > d) {}</script>\n\t\"quoted\"", CreatedAt: 42},
		NewRecord("<!doctype html><html></html>", time.UnixMilli(1712345678901)),
	}
	for _, r := range records {
		tok, err := Encode(r)
		require.NoError(t, err)
		assert.NotContains(t, tok, "=")
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")

		got, err := Decode(tok)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}

func TestEncodeDoesNotEscapeMarkup(t *testing.T) {
	tok, err := Encode(Record{Version: 1, HTML: "<b>&</b>"})
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"html":"<b>&</b>","createdAt":0}`, string(raw))
}

func TestEncodeTooLarge(t *testing.T) {
	r := Record{Version: 1, HTML: strings.Repeat("a", 2000), CreatedAt: 1}

	tok, err := Encode(r)
	assert.Empty(t, tok)

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, DefaultMaxLen, tooLarge.Limit)
	assert.Greater(t, tooLarge.Length, DefaultMaxLen)
}

func TestCodecCustomLimit(t *testing.T) {
	c := Codec{MaxLen: 64}
	_, err := c.Encode(Record{Version: 1, HTML: strings.Repeat("x", 100)})
	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 64, tooLarge.Limit)

	tok, err := c.Encode(Record{Version: 1, HTML: "ok"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(tok), 64)
}

func TestEncodeAtLimitSucceeds(t *testing.T) {
	r := Record{Version: 1, HTML: "abc"}
	tok, err := Encode(r)
	require.NoError(t, err)

	c := Codec{MaxLen: len(tok)}
	_, err = c.Encode(r)
	assert.NoError(t, err)

	c.MaxLen--
	_, err = c.Encode(r)
	assert.Error(t, err)
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	tok, err := Encode(Record{Version: 1, HTML: "<p>\xff\xfe</p>"})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Empty(t, tok)
}

func TestDecodeRejectsTokenOverLimit(t *testing.T) {
	r := Record{Version: 1, HTML: strings.Repeat("a", 100), CreatedAt: 7}
	tok, err := Codec{MaxLen: 1000}.Encode(r)
	require.NoError(t, err)

	got, err := Codec{MaxLen: len(tok)}.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	got, err = Codec{MaxLen: len(tok) - 1}.Decode(tok)
	assert.ErrorIs(t, err, ErrUndecodable)
	assert.Equal(t, Record{}, got)

	long := base64.RawURLEncoding.EncodeToString([]byte(`{"version":1,"html":"` + strings.Repeat("b", 2500) + `"}`))
	require.Greater(t, len(long), DefaultMaxLen)
	_, err = Decode(long)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestDecodeUndecodable(t *testing.T) {
	valid, err := Encode(Record{Version: 1, HTML: "<p>x</p>"})
	require.NoError(t, err)

	enc := base64.RawURLEncoding.EncodeToString
	cases := map[string]string{
		"empty":             "",
		"bad alphabet":      valid[:4] + "*!" + valid[4:],
		"standard alphabet": valid + "+/",
		"padding":           valid + "==",
		"invalid utf8":      enc([]byte{'{', '"', 0xff, 0xfe, '"', '}'}),
		"invalid json":      enc([]byte(`{"version":1,`)),
		"array":             enc([]byte(`[1,2,3]`)),
		"string":            enc([]byte(`"hello"`)),
		"null":              enc([]byte(`null`)),
		"wrong field type":  enc([]byte(`{"version":"one"}`)),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := Decode(tok)
			assert.ErrorIs(t, err, ErrUndecodable)
			assert.Equal(t, Record{}, r)
		})
	}
}

func TestDecodeToleratesMissingFields(t *testing.T) {
	tok := base64.RawURLEncoding.EncodeToString([]byte(`{"html":"<p>x</p>"}`))
	r, err := Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, Record{HTML: "<p>x</p>"}, r)
}

func TestCreated(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecord("x", at)
	assert.Equal(t, CurrentVersion, r.Version)
	assert.True(t, r.Created().Equal(at))
}

func TestConcurrentRoundTrip(t *testing.T) {
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		r := Record{Version: 1, HTML: strings.Repeat("<i>", i), CreatedAt: int64(i)}
		g.Go(func() error {
			tok, err := Encode(r)
			if err != nil {
				return err
			}
			got, err := Decode(tok)
			if err != nil {
				return err
			}
			if got != r {
				return errors.New("round trip mismatch")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
