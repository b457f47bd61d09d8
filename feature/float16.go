package feature

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// f16ToF32 converts raw float16 bits to float32
func f16ToF32(bits uint16) float32 {
	return f16LookupTable[bits]
}

// f32ToF16 converts a float32 to raw float16 bits, rounding to nearest even
func f32ToF16(v float32) uint16 {
	return float16.Fromfloat32(v).Bits()
}
