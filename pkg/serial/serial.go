package serial

import (
	"bytes"
	"encoding/gob"
	"sync"
)

// Serializer gob-encodes values through pooled buffers so hot write paths do
// not allocate a fresh buffer per record.
type Serializer struct {
	pool sync.Pool
}

func New() *Serializer {
	return &Serializer{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, 1024))
			},
		},
	}
}

func (s *Serializer) Serialize(v any) ([]byte, error) {
	buf := s.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer s.put(buf)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	out := append([]byte(nil), buf.Bytes()...) // copy out
	return out, nil
}

func (s *Serializer) Deserialize(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (s *Serializer) put(buf *bytes.Buffer) {
	// only pool buffers that haven't grown too large
	if buf.Cap() <= 64*1024 {
		s.pool.Put(buf)
	}
}
