package parser

import (
	"math"
	"testing"
)

func TestRegisters(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []uint16
		wantErr bool
	}{
		{
			name: "two registers",
			data: []byte{0x88, 0x01, 0x00, 0x2A},
			want: []uint16{0x8801, 42},
		},
		{
			name: "empty",
			data: []byte{},
			want: []uint16{},
		},
		{
			name:    "odd length",
			data:    []byte{0x88},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Registers(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Registers() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Registers() length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Registers()[%d] = 0x%04X, want 0x%04X", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSigned16(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want int16
	}{
		{"zero", 0, 0},
		{"positive", 3350, 3350},
		{"largest positive", 32767, 32767},
		{"boundary is negative", 32768, -32768},
		{"minus one", 65535, -1},
		{"typical negative current", 65486, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Signed16(tt.raw); got != tt.want {
				t.Errorf("Signed16(%d) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestScaledSigned(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		scale float64
		want  float64
	}{
		{"positive current 12.3A", 123, 0.1, 12.3},
		{"negative current -5.0A", 65486, 0.1, -5.0},
		{"soc 97.5%", 975, 0.1, 97.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaledSigned(tt.raw, tt.scale); !floatEqual(got, tt.want) {
				t.Errorf("ScaledSigned(%d, %v) = %v, want %v", tt.raw, tt.scale, got, tt.want)
			}
		})
	}
}

func TestEnergyKwh(t *testing.T) {
	tests := []struct {
		name      string
		low, high uint16
		want      float64
	}{
		{"low word only", 1000, 0, 1.0},
		{"high word only", 0, 1, 65.536},
		{"both words", 34464, 15, 1017.504},
		{"zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnergyKwh(tt.low, tt.high); !floatEqual(got, tt.want) {
				t.Errorf("EnergyKwh(%d, %d) = %v, want %v", tt.low, tt.high, got, tt.want)
			}
		})
	}
}

func TestASCII(t *testing.T) {
	serial := "P011T010Z2305150689"

	// Pack the serial into registers, high byte first, padded with 'x' to an
	// even byte count the way the BMU pads serial blocks.
	packed := serial + "x"
	regs := make([]uint16, len(packed)/2)
	for i := range regs {
		regs[i] = uint16(packed[i*2])<<8 | uint16(packed[i*2+1])
	}

	if got := ASCII(regs); got != serial {
		t.Errorf("ASCII() = %q, want %q", got, serial)
	}

	// Idempotent on already clean input.
	if got := ASCII(regs); got != serial {
		t.Errorf("ASCII() second pass = %q, want %q", got, serial)
	}

	t.Run("strips trailing pad characters", func(t *testing.T) {
		// "AB" followed by 'x', space, NUL padding.
		regs := []uint16{0x4142, 0x7820, 0x0000}
		if got := ASCII(regs); got != "AB" {
			t.Errorf("ASCII() = %q, want %q", got, "AB")
		}
	})

	t.Run("drops non-printable bytes", func(t *testing.T) {
		regs := []uint16{0x0141, 0x42FF}
		if got := ASCII(regs); got != "AB" {
			t.Errorf("ASCII() = %q, want %q", got, "AB")
		}
	})
}

func TestSignedBytePair(t *testing.T) {
	tests := []struct {
		name   string
		reg    uint16
		hi, lo int8
	}{
		{"positive and negative", 0x1CE5, 28, -27},
		{"both positive", 0x1A1B, 26, 27},
		{"both zero", 0x0000, 0, 0},
		{"both negative", 0xF0F1, -16, -15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hi, lo := SignedBytePair(tt.reg)
			if hi != tt.hi || lo != tt.lo {
				t.Errorf("SignedBytePair(0x%04X) = (%d, %d), want (%d, %d)", tt.reg, hi, lo, tt.hi, tt.lo)
			}
		})
	}
}

func TestMaskBits(t *testing.T) {
	tests := []struct {
		name  string
		mask  uint16
		width int
		want  []int
	}{
		{"bits 1 and 5 are cells 2 and 6", 0x0022, 16, []int{2, 6}},
		{"bit 0 is cell 1", 0x0001, 16, []int{1}},
		{"bit 15 is cell 16", 0x8000, 16, []int{16}},
		{"empty mask", 0x0000, 16, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskBits(tt.mask, tt.width)
			if len(got) != len(tt.want) {
				t.Fatalf("MaskBits(0x%04X) = %v, want %v", tt.mask, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MaskBits(0x%04X)[%d] = %d, want %d", tt.mask, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEncodeUint16s(t *testing.T) {
	got := EncodeUint16s([]uint16{3, 0x8100})
	want := []byte{0x00, 0x03, 0x81, 0x00}
	if len(got) != len(want) {
		t.Fatalf("EncodeUint16s() length = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("EncodeUint16s()[%d] = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}
