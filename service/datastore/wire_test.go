// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datastore

import (
	"testing"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/protobuf/types/known/timestamppb"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
)

func TestValueWire(t *testing.T) {
	t.Parallel()

	ftt.Run("Value wire conversion", t, func(t *ftt.Test) {
		parent := NewNameKey("P", "p", nil)

		t.Run("round trips every supported variant", func(t *ftt.Test) {
			vals := []Value{
				Null(),
				Int(-42),
				Bool(true),
				Bool(false),
				Blob([]byte{0, 1, 2}),
				String("héllo"),
				Float(2.5),
				KeyValue(NewIDKey("K", 1, parent)),
				Array(Int(1), String("a"), Null()),
				Array(),
			}
			for _, v := range vals {
				back, err := ValueFromPB(ValueToPB(v, true, 0))
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, back.Equal(v), should.BeTrue)
				assert.Loosely(t, back.String(), should.Equal(v.String()))
			}
		})

		t.Run("null may arrive empty", func(t *ftt.Test) {
			v, err := ValueFromPB(&datastorepb.Value{})
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, v.IsNull(), should.BeTrue)

			v, err = ValueFromPB(nil)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, v.IsNull(), should.BeTrue)
		})

		t.Run("unsupported values fail", func(t *ftt.Test) {
			for _, pb := range []*datastorepb.Value{
				{ValueType: &datastorepb.Value_EntityValue{EntityValue: &datastorepb.Entity{}}},
				{ValueType: &datastorepb.Value_GeoPointValue{GeoPointValue: &latlng.LatLng{Latitude: 1}}},
				{ValueType: &datastorepb.Value_TimestampValue{TimestampValue: timestamppb.Now()}},
			} {
				_, err := ValueFromPB(pb)
				assert.Loosely(t, errors.Is(err, ErrUnsupportedValue), should.BeTrue)
			}
		})

		t.Run("nested unsupported values fail the whole entity", func(t *ftt.Test) {
			pb := &datastorepb.Entity{
				Key: NewIDKey("E", 1, nil).ToPB(),
				Properties: map[string]*datastorepb.Value{
					"ok": {ValueType: &datastorepb.Value_IntegerValue{IntegerValue: 1}},
					"bad": {ValueType: &datastorepb.Value_ArrayValue{ArrayValue: &datastorepb.ArrayValue{
						Values: []*datastorepb.Value{
							{ValueType: &datastorepb.Value_EntityValue{EntityValue: &datastorepb.Entity{}}},
						},
					}}},
				},
			}
			_, err := EntityFromPB(pb)
			assert.Loosely(t, errors.Is(err, ErrUnsupportedValue), should.BeTrue)
			assert.Loosely(t, err, should.ErrLike(`property "bad"`))
		})

		t.Run("arrays carry the property flag on each element", func(t *ftt.Test) {
			pb := ValueToPB(Array(Int(1), Int(2)), false, MeaningText)
			assert.Loosely(t, pb.ExcludeFromIndexes, should.BeFalse)
			assert.Loosely(t, pb.Meaning, should.Equal(int32(0)))
			for _, el := range pb.GetArrayValue().GetValues() {
				assert.Loosely(t, el.ExcludeFromIndexes, should.BeTrue)
				assert.Loosely(t, el.Meaning, should.Equal(MeaningText))
			}

			pv, err := PropertyFromPB(pb)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, pv.Indexed, should.BeFalse)
			assert.Loosely(t, pv.Meaning, should.Equal(MeaningText))
		})

		t.Run("scalar metadata", func(t *ftt.Test) {
			pb := PropertyToPB(PropertyValue{Value: String("long"), Indexed: false, Meaning: MeaningText})
			assert.Loosely(t, pb.ExcludeFromIndexes, should.BeTrue)
			assert.Loosely(t, pb.Meaning, should.Equal(MeaningText))

			pv, err := PropertyFromPB(pb)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, pv.Indexed, should.BeFalse)
			assert.Loosely(t, pv.Meaning, should.Equal(MeaningText))

			pb = PropertyToPB(PropertyValue{Value: Null(), Indexed: true})
			_, isNull := pb.ValueType.(*datastorepb.Value_NullValue)
			assert.Loosely(t, isNull, should.BeTrue)
			assert.Loosely(t, pb.ExcludeFromIndexes, should.BeFalse)
		})

		t.Run("entity round trip", func(t *ftt.Test) {
			e := NewEntity(NewNameKey("E", "x", parent))
			e.SetIndexed("i", Int(1))
			e.SetUnindexed("s", String("s"))
			e.SetAdvanced("t", String("text"), false, true, MeaningText)
			e.SetIndexed("n", Null())
			e.SetIndexed("arr", Array(Bool(true), Float(1)))

			back, err := EntityFromPB(e.ToPB())
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, back.String(), should.Equal(e.String()))
			assert.Loosely(t, back.Key().Equal(e.Key()), should.BeTrue)
		})
	})
}
