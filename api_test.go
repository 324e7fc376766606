package bitform

import (
	"bytes"
	"errors"
	"testing"
)

func TestMarshal(t *testing.T) {
	v := uint32(0x01020304)
	data, err := Marshal(Uint32(), Big, &v)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Errorf("Marshal() = % x", data)
	}
	if cap(data) != 4 {
		t.Errorf("Marshal() cap = %d, want preallocated 4", cap(data))
	}
}

func TestMarshal_Error(t *testing.T) {
	v := uint32(1)
	data, err := Marshal(Uint32(), None{}, &v)
	if !errors.Is(err, ErrContext) {
		t.Errorf("Marshal() error = %v, want ErrContext", err)
	}
	if data != nil {
		t.Errorf("Marshal() = % x, want nil", data)
	}
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    uint16
		wantErr error
	}{
		{"exact", []byte{0x01, 0x02}, 0x0102, nil},
		{"short", []byte{0x01}, 0, ErrWrapped},
		{"trailing", []byte{0x01, 0x02, 0x03}, 0, ErrRemainingBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal(Uint16(), Big, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Unmarshal() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestPlan_MarshalUnmarshal(t *testing.T) {
	plan := mustCompile(t, pointSchema())

	v := pointRecord{X: 1, Y: BigEndian[uint32]{Value: 2}}
	data, err := plan.Marshal(None{}, &v)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got, err := plan.Unmarshal(None{}, data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got != v {
		t.Errorf("Unmarshal() = %+v, want %+v", got, v)
	}
}
