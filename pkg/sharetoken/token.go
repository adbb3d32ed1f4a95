// Package sharetoken packs a prototype into a URL-safe token that can travel
// in a link fragment, and unpacks it again.
package sharetoken

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// CurrentVersion is written into every new record.
	CurrentVersion = 1

	// DefaultMaxLen is the longest token the package-level Encode emits.
	// Longer links are truncated by some browsers and chat clients.
	DefaultMaxLen = 1800
)

// ErrUndecodable is returned by Decode for any token that does not carry a
// record. Callers treat it exactly like "no share present".
var ErrUndecodable = errors.New("sharetoken: undecodable token")

// ErrInvalidUTF8 is returned by Encode for html that is not valid UTF-8 and
// would not survive the JSON round trip.
var ErrInvalidUTF8 = errors.New("sharetoken: html is not valid UTF-8")

var encoding = base64.RawURLEncoding

// Record is the shared payload.
type Record struct {
	Version   int    `json:"version"`
	HTML      string `json:"html"`
	CreatedAt int64  `json:"createdAt"` // Unix milliseconds
}

// NewRecord stamps html with the current version and t.
func NewRecord(html string, t time.Time) Record {
	return Record{Version: CurrentVersion, HTML: html, CreatedAt: t.UnixMilli()}
}

// Created returns CreatedAt as a time.Time.
func (r Record) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// TooLargeError reports a token that exceeds the configured ceiling.
type TooLargeError struct {
	Length int
	Limit  int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("sharetoken: token length %d exceeds limit %d", e.Length, e.Limit)
}

// Codec encodes and decodes records with a fixed token ceiling. The zero
// value uses DefaultMaxLen.
type Codec struct {
	MaxLen int
}

func (c Codec) limit() int {
	if c.MaxLen <= 0 {
		return DefaultMaxLen
	}
	return c.MaxLen
}

// Encode serializes r and returns its token, or a *TooLargeError when the
// token would be longer than the ceiling.
func (c Codec) Encode(r Record) (string, error) {
	if !utf8.ValidString(r.HTML) {
		return "", ErrInvalidUTF8
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("sharetoken: marshal record: %w", err)
	}
	raw := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	n := encoding.EncodedLen(len(raw))
	if n > c.limit() {
		return "", &TooLargeError{Length: n, Limit: c.limit()}
	}
	return encoding.EncodeToString(raw), nil
}

// Decode reverses Encode. Tokens over the ceiling are rejected like any
// other bad input: every failure collapses into ErrUndecodable.
func (c Codec) Decode(token string) (Record, error) {
	if len(token) > c.limit() {
		return Record{}, ErrUndecodable
	}
	raw, err := encoding.DecodeString(token)
	if err != nil || !utf8.Valid(raw) {
		return Record{}, ErrUndecodable
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, ErrUndecodable
	}

	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Record{}, ErrUndecodable
	}
	return r, nil
}

var defaultCodec Codec

// Encode uses a Codec with DefaultMaxLen.
func Encode(r Record) (string, error) { return defaultCodec.Encode(r) }

// Decode uses a Codec with DefaultMaxLen.
func Decode(token string) (Record, error) { return defaultCodec.Decode(token) }
