package contacts

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/optcache/codec"
)

// CodecNames lists the codecs CodecByName understands.
var CodecNames = append(append([]string(nil), codec.Names...), "protobuf")

// CodecByName returns a stored-value codec for Collection.
func CodecByName(name string) (codec.Codec[Collection], error) {
	if name == "protobuf" {
		return ProtoCodec{}, nil
	}
	return codec.ByName[Collection](name)
}

// ProtoCodec stores a Collection as a protobuf ListValue of Structs, one per
// record. Ids must fit a float64 exactly.
type ProtoCodec struct{}

var _ codec.Codec[Collection] = ProtoCodec{}

var listCodec = codec.NewProtobuf(func() *structpb.ListValue { return &structpb.ListValue{} })

const maxExactID = 1 << 53

func (ProtoCodec) Encode(c Collection) ([]byte, error) {
	lv := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(c))}
	for _, r := range c {
		if r.ID > maxExactID || r.ID < -maxExactID {
			return nil, fmt.Errorf("contacts: id %d out of range for protobuf codec", r.ID)
		}
		lv.Values = append(lv.Values, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"id":    structpb.NewNumberValue(float64(r.ID)),
				"name":  structpb.NewStringValue(r.Name),
				"phone": structpb.NewStringValue(r.Phone),
			},
		}))
	}
	return listCodec.Encode(lv)
}

func (ProtoCodec) Decode(b []byte) (Collection, error) {
	lv, err := listCodec.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make(Collection, 0, len(lv.GetValues()))
	for i, v := range lv.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("contacts: element %d is not a struct", i)
		}
		f := s.GetFields()
		id := f["id"].GetNumberValue()
		if id != math.Trunc(id) {
			return nil, fmt.Errorf("contacts: element %d has non-integer id %v", i, id)
		}
		out = append(out, Record{
			ID:    ID(id),
			Name:  f["name"].GetStringValue(),
			Phone: f["phone"].GetStringValue(),
		})
	}
	return out, nil
}
