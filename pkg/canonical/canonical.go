// Package canonical is the single canonicalization and hashing path for sealed
// content. Every hash stored on an evidence record is computed here so equal
// content always yields equal digests regardless of key order or whitespace.
//
// Encoding rules:
//   - object keys sorted by byte order, no insignificant whitespace
//   - strings encoded as UTF-8 JSON without HTML escaping
//   - numbers kept exact in decimal: no sign on zero, no leading or trailing
//     zeros, plain notation for adjusted exponents in [-7, 21) and
//     d.ddde±n otherwise
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Marshal returns the canonical JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := encode(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the hex SHA-256 of the canonical encoding of v.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the hex SHA-256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashingReader wraps r and hashes every byte read through it.
type HashingReader struct {
	r    io.Reader
	h    hashWriter
	size int64
}

type hashWriter interface {
	io.Writer
	Sum(b []byte) []byte
}

// NewHashingReader returns a reader that computes SHA-256 over the full stream.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: sha256.New()}
}

func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		_, _ = hr.h.Write(p[:n])
		hr.size += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of everything read so far.
func (hr *HashingReader) Sum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}

// Size returns the number of bytes read so far.
func (hr *HashingReader) Size() int64 {
	return hr.size
}

func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return encodeNumber(buf, t)
	case string:
		return encodeString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
	return nil
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s, err := normalizeNumber(string(n))
	if err != nil {
		return fmt.Errorf("canonical: number %q: %w", string(n), err)
	}
	buf.WriteString(s)
	return nil
}

var errNumberSyntax = errors.New("invalid number syntax")

// normalizeNumber rewrites a JSON number literal into its canonical decimal
// form without passing through a binary float, so no digit is ever lost.
func normalizeNumber(lit string) (string, error) {
	neg := strings.HasPrefix(lit, "-")
	rest := strings.TrimPrefix(lit, "-")

	mantissa, expPart, hasExp := strings.Cut(strings.ToLower(rest), "e")
	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if intPart == "" || !isDigits(intPart) || !isDigits(fracPart) {
		return "", errNumberSyntax
	}
	exp := 0
	if hasExp {
		e, err := strconv.Atoi(strings.TrimPrefix(expPart, "+"))
		if err != nil || expPart == "" {
			return "", errNumberSyntax
		}
		exp = e
	}

	// value = digits × 10^exp with digits free of leading and trailing zeros.
	digits := strings.TrimLeft(intPart+fracPart, "0")
	exp -= len(fracPart)
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)
	digits = trimmed
	if digits == "" {
		return "0", nil
	}

	var out strings.Builder
	if neg {
		out.WriteByte('-')
	}
	adjusted := exp + len(digits) - 1
	switch {
	case adjusted < -7 || adjusted >= 21:
		out.WriteByte(digits[0])
		if len(digits) > 1 {
			out.WriteByte('.')
			out.WriteString(digits[1:])
		}
		out.WriteByte('e')
		if adjusted > 0 {
			out.WriteByte('+')
		}
		out.WriteString(strconv.Itoa(adjusted))
	case exp >= 0:
		out.WriteString(digits)
		out.WriteString(strings.Repeat("0", exp))
	case -exp < len(digits):
		point := len(digits) + exp
		out.WriteString(digits[:point])
		out.WriteByte('.')
		out.WriteString(digits[point:])
	default:
		out.WriteString("0.")
		out.WriteString(strings.Repeat("0", -exp-len(digits)))
		out.WriteString(digits)
	}
	return out.String(), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("canonical: string: %w", err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
