package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestShapeParameters_MarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		params ShapeParameters
		want   string
	}{
		{
			name:   "box",
			params: NewBox(3, 4, 10, Vec3{}),
			want:   `{"shape":"box","width":3,"depth":4,"height":10,"rotation":[0,0,0]}`,
		},
		{
			name:   "cylinder",
			params: NewCylinder(7, 20, Vec3{0, 90, 0}),
			want:   `{"shape":"cylinder","radius":7,"height":20,"rotation":[0,90,0]}`,
		},
		{
			name:   "sphere",
			params: NewSphere(5, Vec3{}),
			want:   `{"shape":"sphere","radius":5,"rotation":[0,0,0]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.params)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestShapeParameters_UnmarshalJSON(t *testing.T) {
	t.Run("missing dimensions take defaults", func(t *testing.T) {
		var p ShapeParameters
		require.NoError(t, json.Unmarshal([]byte(`{"shape":"cylinder"}`), &p))
		assert.Equal(t, NewCylinder(DefaultCylinderRadius, DefaultCylinderHeight, Vec3{}), p)
	})

	t.Run("fields of other kinds are dropped", func(t *testing.T) {
		var p ShapeParameters
		require.NoError(t, json.Unmarshal([]byte(`{"shape":"sphere","radius":2,"width":9}`), &p))
		assert.Equal(t, NewSphere(2, Vec3{}), p)
	})

	t.Run("rotation needs three components", func(t *testing.T) {
		var p ShapeParameters
		err := json.Unmarshal([]byte(`{"shape":"box","rotation":[1,2]}`), &p)
		assert.True(t, errors.Is(err, ErrInvalidParams))
	})

	t.Run("unknown kind decodes but does not validate", func(t *testing.T) {
		var p ShapeParameters
		require.NoError(t, json.Unmarshal([]byte(`{"shape":"torus","radius":2}`), &p))
		assert.Equal(t, ShapeKind("torus"), p.Shape)
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
	})
}

func TestShapeParameters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  ShapeParameters
		wantErr bool
	}{
		{"valid box", NewBox(1, 2, 3, Vec3{}), false},
		{"valid cylinder", NewCylinder(1, 2, Vec3{45, 0, 0}), false},
		{"valid sphere", NewSphere(1, Vec3{}), false},
		{"missing kind", ShapeParameters{Radius: 1}, true},
		{"unknown kind", ShapeParameters{Shape: "cone", Radius: 1}, true},
		{"zero width", NewBox(0, 2, 3, Vec3{}), true},
		{"negative radius", NewSphere(-1, Vec3{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShapeEntry_JSONRoundTrip(t *testing.T) {
	in := ShapeEntry{
		Params:   NewCylinder(7, 20, Vec3{0, 90, 0}),
		Position: Vec3{1.5, -2, 0},
		Rotation: Vec3{0, 0, 30},
		Prompt:   "cylinder radius 7 height 20 lying",
		BrepFile: "shape_0.step",
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out ShapeEntry
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestShapeParameters_EncodeMsgpack(t *testing.T) {
	data, err := msgpack.Marshal(NewBox(3, 4, 5, Vec3{0, 0, 90}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, "box", decoded["shape"])
	assert.EqualValues(t, 3, decoded["width"])
	assert.NotContains(t, decoded, "radius")
}
