package asset

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

const spirvMagic = 0x07230203

// ErrInvalidShader is returned for data that is not a SPIR-V module.
var ErrInvalidShader = errors.New("not a SPIR-V module")

// LoadShader reads a compiled SPIR-V module.
func LoadShader(path string) ([]uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read shader")
	}
	code, err := DecodeShader(raw)
	return code, errors.Wrapf(err, "load %s", path)
}

// DecodeShader converts little-endian SPIR-V bytes into words.
func DecodeShader(raw []byte) ([]uint32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidShader, "length %d is not a positive multiple of 4", len(raw))
	}
	code := make([]uint32, len(raw)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	if code[0] != spirvMagic {
		return nil, errors.Wrapf(ErrInvalidShader, "magic %#08x", code[0])
	}
	return code, nil
}
