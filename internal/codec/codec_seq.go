package codec

// Marshaler is implemented by every wire type: NumBytes reports a size
// callers preallocate with (types with variable-length prefixes count
// each prefix as 4 bytes, so it can exceed the encoded size), and
// MarshalCodec appends to an Encoder. Each package pairs a type with a
// Read<Type> function that decodes it from a Decoder.
type Marshaler interface {
	NumBytes() int
	MarshalCodec(e *Encoder)
}

// WriteSeq writes a VarUint32 count followed by each element's encoding.
func WriteSeq[T Marshaler](e *Encoder, items []T) {
	e.WriteVarUint32(uint32(len(items)))
	for _, it := range items {
		it.MarshalCodec(e)
	}
}

// ReadSeq reads a VarUint32 count then decodes that many elements with
// decodeOne.
func ReadSeq[T any](d *Decoder, decodeOne func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.ReadVarUint32()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := decodeOne(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// WriteOptionalBytes writes the single-byte-flag + value encoding for an
// optional field
func WriteOptionalBytes(e *Encoder, v []byte, present bool) {
	e.WriteBool(present)
	if present {
		e.WriteBytes(v)
	}
}

func ReadOptionalBytes(d *Decoder) ([]byte, bool, error) {
	present, err := d.ReadBool()
	if err != nil || !present {
		return nil, false, err
	}
	b, err := d.ReadBytes()
	return b, true, err
}
