// Package header implements the envelope header codec (spec.md §4.B/§6): a
// self-describing binary blob framed by an 8-byte little-endian length
// prefix, encoding the options map and the stream nonce in a fixed,
// position-ordered layout. Every field is little-endian; every byte string
// and every sequence is length-prefixed with an 8-byte count, matching the
// original Rust implementation's bincode framing so that the wire format
// this spec pins (§6) is reproduced byte-for-byte rather than merely
// emulated.
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/arctide/cyst/internal/cerrors"
)

// NoncePrefixSize is the length of the header's stream nonce.
const NoncePrefixSize = 7

// FactorEntry is one (factor-name, factor-data) pair within an option, in
// the order the user added it during creation (spec.md §3: "order is
// significant").
type FactorEntry struct {
	Name string
	Data []byte
}

// OptionData is the persisted form of a single decryption option
// (spec.md §3).
type OptionData struct {
	Salt                 [32]byte
	Factors              []FactorEntry
	PrimaryKeyNonce      [12]byte
	PrimaryKeyCiphertext []byte
}

// Header is the envelope's plaintext metadata, serialized at the start of
// every file (spec.md §3, §6).
type Header struct {
	Options map[string]OptionData
	Nonce   [NoncePrefixSize]byte
}

// SortedOptionNames returns the option names in lexicographic order, for
// display during decryption (spec.md §4.C: "the UI shows options sorted
// lexicographically for selection"). The stored factor order within each
// option is unaffected by this.
func (h *Header) SortedOptionNames() []string {
	names := make([]string, 0, len(h.Options))
	for name := range h.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode serializes a Header to the fixed binary layout described in
// spec.md §6, without the outer length prefix.
func Encode(h *Header) []byte {
	var buf bytes.Buffer

	writeUint64(&buf, uint64(len(h.Options)))
	// Deterministic iteration order keeps Encode(Decode(Encode(h))) stable
	// across runs, which matters for tests even though the format itself
	// doesn't require it.
	for _, name := range h.SortedOptionNames() {
		writeBytes(&buf, []byte(name))
		writeOptionData(&buf, h.Options[name])
	}
	buf.Write(h.Nonce[:])

	return buf.Bytes()
}

func writeOptionData(buf *bytes.Buffer, opt OptionData) {
	buf.Write(opt.Salt[:])

	writeUint64(buf, uint64(len(opt.Factors)))
	for _, f := range opt.Factors {
		writeBytes(buf, []byte(f.Name))
		writeBytes(buf, f.Data)
	}

	buf.Write(opt.PrimaryKeyNonce[:])
	writeBytes(buf, opt.PrimaryKeyCiphertext)
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint64(buf, uint64(len(b)))
	buf.Write(b)
}

// decoder reads the fixed binary layout sequentially, returning
// cerrors.ErrHeaderMalformed (wrapped with context) on any structural
// problem: truncation, a length prefix that overruns what's left, or a
// semantic violation (duplicate/empty option name, zero options).
type decoder struct {
	r *bytes.Reader
}

func (d *decoder) readUint64() (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(d.r, tmp[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated length field: %v", cerrors.ErrHeaderMalformed, err)
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func (d *decoder) readExact(n int) ([]byte, error) {
	if n < 0 || uint64(n) > uint64(d.r.Len()) {
		return nil, fmt.Errorf("%w: field length %d exceeds remaining header bytes", cerrors.ErrHeaderMalformed, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, fmt.Errorf("%w: truncated field: %v", cerrors.ErrHeaderMalformed, err)
	}
	return b, nil
}

func (d *decoder) readBytes() ([]byte, error) {
	n, err := d.readUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.r.Len()) {
		return nil, fmt.Errorf("%w: byte-string length %d exceeds remaining header bytes", cerrors.ErrHeaderMalformed, n)
	}
	return d.readExact(int(n))
}

func (d *decoder) readString() (string, error) {
	b, err := d.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) readArray(n int) ([]byte, error) {
	return d.readExact(n)
}

// Decode parses a Header from its serialized form (as produced by Encode,
// without the outer length prefix).
func Decode(data []byte) (*Header, error) {
	d := &decoder{r: bytes.NewReader(data)}

	optionCount, err := d.readUint64()
	if err != nil {
		return nil, err
	}
	if optionCount == 0 {
		return nil, fmt.Errorf("%w: header has zero options", cerrors.ErrHeaderMalformed)
	}

	options := make(map[string]OptionData, optionCount)
	for i := uint64(0); i < optionCount; i++ {
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("%w: empty option name", cerrors.ErrHeaderMalformed)
		}
		if _, exists := options[name]; exists {
			return nil, fmt.Errorf("%w: duplicate option name %q", cerrors.ErrHeaderMalformed, name)
		}

		opt, err := readOptionData(d)
		if err != nil {
			return nil, err
		}
		options[name] = opt
	}

	nonceBytes, err := d.readArray(NoncePrefixSize)
	if err != nil {
		return nil, err
	}

	h := &Header{Options: options}
	copy(h.Nonce[:], nonceBytes)

	if d.r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after header", cerrors.ErrHeaderMalformed, d.r.Len())
	}

	return h, nil
}

func readOptionData(d *decoder) (OptionData, error) {
	var opt OptionData

	salt, err := d.readArray(32)
	if err != nil {
		return opt, err
	}
	copy(opt.Salt[:], salt)

	factorCount, err := d.readUint64()
	if err != nil {
		return opt, err
	}
	if factorCount == 0 {
		return opt, fmt.Errorf("%w: option has zero factors", cerrors.ErrHeaderMalformed)
	}

	opt.Factors = make([]FactorEntry, 0, factorCount)
	for i := uint64(0); i < factorCount; i++ {
		fname, err := d.readString()
		if err != nil {
			return opt, err
		}
		fdata, err := d.readBytes()
		if err != nil {
			return opt, err
		}
		opt.Factors = append(opt.Factors, FactorEntry{Name: fname, Data: fdata})
	}

	nonce, err := d.readArray(12)
	if err != nil {
		return opt, err
	}
	copy(opt.PrimaryKeyNonce[:], nonce)

	ciphertext, err := d.readBytes()
	if err != nil {
		return opt, err
	}
	opt.PrimaryKeyCiphertext = ciphertext

	return opt, nil
}

// WriteTo writes the length-prefixed header to w: an 8-byte little-endian
// length followed by the serialized header. Raw ciphertext may be written
// directly after this returns.
func WriteTo(w io.Writer, h *Header) error {
	serialized := Encode(h)

	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(len(serialized)))

	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write header length: %w", err)
	}
	if _, err := w.Write(serialized); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// ReadFrom reads a length-prefixed header from r, leaving r's cursor
// immediately before the first ciphertext byte. cap bounds the allowed
// header length, so a corrupt or hostile length prefix can't force an
// unbounded allocation (spec.md §4.B).
//
// It returns the header and the number of bytes consumed (8 + header
// length), so callers can compute how many ciphertext bytes remain given
// the total file size.
func ReadFrom(r io.Reader, cap uint64) (*Header, uint64, error) {
	var lenPrefix [8]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: truncated header length prefix: %v", cerrors.ErrHeaderMalformed, err)
	}
	headerLen := binary.LittleEndian.Uint64(lenPrefix[:])
	if headerLen > cap {
		return nil, 0, fmt.Errorf("%w: header length %d exceeds cap %d", cerrors.ErrHeaderMalformed, headerLen, cap)
	}

	serialized := make([]byte, headerLen)
	if _, err := io.ReadFull(r, serialized); err != nil {
		return nil, 0, fmt.Errorf("%w: truncated header: %v", cerrors.ErrHeaderMalformed, err)
	}

	h, err := Decode(serialized)
	if err != nil {
		return nil, 0, err
	}
	return h, 8 + headerLen, nil
}
