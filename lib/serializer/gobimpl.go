package serializer

import (
	"bytes"
	"encoding/gob"
	"github.com/ValentinKolb/dSync/lib/docdb"
)

func init() {
	// nested payload values travel as interface values and must be known to gob
	gob.Register(map[string]any{})
	gob.Register(docdb.Payload{})
	gob.Register([]any{})
}

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IPayloadSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IPayloadSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IPayloadSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(p docdb.Payload) ([]byte, error) {
	if p == nil {
		p = docdb.Payload{}
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte) (docdb.Payload, error) {
	p := docdb.Payload{}
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

func (g gobSerializerImpl) Name() string {
	return "gob"
}
