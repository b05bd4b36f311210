package serializer

import (
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/goccy/go-json"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IPayloadSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IPayloadSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IPayloadSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(p docdb.Payload) ([]byte, error) {
	if p == nil {
		p = docdb.Payload{}
	}
	return json.Marshal(p)
}

func (j jsonSerializerImpl) Deserialize(b []byte) (docdb.Payload, error) {
	p := docdb.Payload{}
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (j jsonSerializerImpl) Name() string {
	return "json"
}
