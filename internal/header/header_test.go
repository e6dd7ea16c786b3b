package header

import (
	"bytes"
	"errors"
	"testing"

	"github.com/arctide/cyst/internal/cerrors"
)

func sampleHeader() *Header {
	h := &Header{
		Options: map[string]OptionData{
			"pw": {
				Salt:                 [32]byte{1, 2, 3},
				Factors:              []FactorEntry{{Name: "Passphrase", Data: nil}},
				PrimaryKeyNonce:      [12]byte{4, 5, 6},
				PrimaryKeyCiphertext: []byte("ciphertext-pw"),
			},
			"kf": {
				Salt:                 [32]byte{7, 8, 9},
				Factors:              []FactorEntry{{Name: "Keyfile", Data: []byte{}}},
				PrimaryKeyNonce:      [12]byte{10, 11, 12},
				PrimaryKeyCiphertext: []byte("ciphertext-kf"),
			},
		},
		Nonce: [7]byte{1, 2, 3, 4, 5, 6, 7},
	}
	return h
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := sampleHeader()
	encoded := Encode(h)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.Nonce != h.Nonce {
		t.Errorf("Nonce = %v, want %v", decoded.Nonce, h.Nonce)
	}
	if len(decoded.Options) != len(h.Options) {
		t.Fatalf("len(Options) = %d, want %d", len(decoded.Options), len(h.Options))
	}
	for name, opt := range h.Options {
		got, ok := decoded.Options[name]
		if !ok {
			t.Fatalf("missing option %q after round-trip", name)
		}
		if got.Salt != opt.Salt {
			t.Errorf("option %q: Salt mismatch", name)
		}
		if got.PrimaryKeyNonce != opt.PrimaryKeyNonce {
			t.Errorf("option %q: PrimaryKeyNonce mismatch", name)
		}
		if !bytes.Equal(got.PrimaryKeyCiphertext, opt.PrimaryKeyCiphertext) {
			t.Errorf("option %q: PrimaryKeyCiphertext mismatch", name)
		}
		if len(got.Factors) != len(opt.Factors) {
			t.Fatalf("option %q: len(Factors) = %d, want %d", name, len(got.Factors), len(opt.Factors))
		}
		for i, f := range opt.Factors {
			if got.Factors[i].Name != f.Name {
				t.Errorf("option %q factor %d: Name = %q, want %q", name, i, got.Factors[i].Name, f.Name)
			}
			if !bytes.Equal(got.Factors[i].Data, f.Data) {
				t.Errorf("option %q factor %d: Data mismatch", name, i)
			}
		}
	}
}

func TestEncodeDecodeIsIdempotent(t *testing.T) {
	h := sampleHeader()
	first := Encode(h)
	decoded, err := Decode(first)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	second := Encode(decoded)
	if !bytes.Equal(first, second) {
		t.Error("Encode(Decode(Encode(h))) != Encode(h)")
	}
}

func TestFactorOrderPreserved(t *testing.T) {
	h := &Header{
		Options: map[string]OptionData{
			"hw+pin": {
				Salt: [32]byte{1},
				Factors: []FactorEntry{
					{Name: "Keyfile", Data: nil},
					{Name: "Passphrase", Data: nil},
				},
				PrimaryKeyNonce:      [12]byte{2},
				PrimaryKeyCiphertext: []byte("ct"),
			},
		},
		Nonce: [7]byte{9},
	}

	decoded, err := Decode(Encode(h))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	factors := decoded.Options["hw+pin"].Factors
	if len(factors) != 2 || factors[0].Name != "Keyfile" || factors[1].Name != "Passphrase" {
		t.Errorf("factor order not preserved: %+v", factors)
	}
}

func TestDecodeRejectsZeroOptions(t *testing.T) {
	var buf bytes.Buffer
	writeUint64(&buf, 0) // option count
	buf.Write(make([]byte, NoncePrefixSize))

	_, err := Decode(buf.Bytes())
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("Decode() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestDecodeRejectsDuplicateOptionNames(t *testing.T) {
	var buf bytes.Buffer
	writeUint64(&buf, 2)
	writeBytes(&buf, []byte("dup"))
	writeOptionData(&buf, OptionData{
		Factors:              []FactorEntry{{Name: "Passphrase"}},
		PrimaryKeyCiphertext: []byte("ct"),
	})
	writeBytes(&buf, []byte("dup"))
	writeOptionData(&buf, OptionData{
		Factors:              []FactorEntry{{Name: "Passphrase"}},
		PrimaryKeyCiphertext: []byte("ct"),
	})
	buf.Write(make([]byte, NoncePrefixSize))

	_, err := Decode(buf.Bytes())
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("Decode() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestDecodeRejectsEmptyOptionName(t *testing.T) {
	var buf bytes.Buffer
	writeUint64(&buf, 1)
	writeBytes(&buf, []byte(""))
	writeOptionData(&buf, OptionData{
		Factors:              []FactorEntry{{Name: "Passphrase"}},
		PrimaryKeyCiphertext: []byte("ct"),
	})
	buf.Write(make([]byte, NoncePrefixSize))

	_, err := Decode(buf.Bytes())
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("Decode() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestDecodeRejectsZeroFactorOption(t *testing.T) {
	var buf bytes.Buffer
	writeUint64(&buf, 1)
	writeBytes(&buf, []byte("empty"))
	writeOptionData(&buf, OptionData{Factors: nil, PrimaryKeyCiphertext: []byte("ct")})
	buf.Write(make([]byte, NoncePrefixSize))

	_, err := Decode(buf.Bytes())
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("Decode() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	h := sampleHeader()
	encoded := Encode(h)

	_, err := Decode(encoded[:len(encoded)-3])
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("Decode() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestDecodeRejectsOversizedLengthField(t *testing.T) {
	var buf bytes.Buffer
	writeUint64(&buf, 1)
	writeUint64(&buf, 1<<40) // absurd name length
	buf.Write([]byte("short"))

	_, err := Decode(buf.Bytes())
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("Decode() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	h := sampleHeader()

	var buf bytes.Buffer
	if err := WriteTo(&buf, h); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	buf.WriteString("ciphertext-follows")

	decoded, consumed, err := ReadFrom(&buf, 16*1024*1024)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if decoded.Nonce != h.Nonce {
		t.Errorf("Nonce = %v, want %v", decoded.Nonce, h.Nonce)
	}
	if consumed == 0 {
		t.Error("consumed = 0, want > 0")
	}

	rest, err := readAll(&buf)
	if err != nil {
		t.Fatalf("read remainder: %v", err)
	}
	if string(rest) != "ciphertext-follows" {
		t.Errorf("cursor not left at ciphertext start: got %q", rest)
	}
}

func TestReadFromRejectsOversizeHeader(t *testing.T) {
	h := sampleHeader()
	var buf bytes.Buffer
	if err := WriteTo(&buf, h); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	_, _, err := ReadFrom(&buf, 4) // cap far smaller than the real header
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("ReadFrom() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestReadFromRejectsTruncatedStream(t *testing.T) {
	h := sampleHeader()
	var buf bytes.Buffer
	if err := WriteTo(&buf, h); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-10]

	_, _, err := ReadFrom(bytes.NewReader(truncated), 16*1024*1024)
	if !errors.Is(err, cerrors.ErrHeaderMalformed) {
		t.Errorf("ReadFrom() error = %v, want ErrHeaderMalformed", err)
	}
}

func TestSortedOptionNames(t *testing.T) {
	h := sampleHeader()
	names := h.SortedOptionNames()
	if len(names) != 2 || names[0] != "kf" || names[1] != "pw" {
		t.Errorf("SortedOptionNames() = %v, want [kf pw]", names)
	}
}

func readAll(buf *bytes.Buffer) ([]byte, error) {
	return buf.Bytes(), nil
}
