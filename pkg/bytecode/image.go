package bytecode

import (
	"bytes"
	"fmt"

	"fortio.org/safecast"
	"google.golang.org/protobuf/encoding/protowire"
)

// ImageVersion is the current image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint64 = 1

// ImageMagic prefixes every image file: "PXIM" (PiX IMage).
var ImageMagic = []byte{'P', 'X', 'I', 'M'}

// Image field numbers.
const (
	fieldVersion    protowire.Number = 1
	fieldMemorySize protowire.Number = 2
	fieldCode       protowire.Number = 3
	fieldName       protowire.Number = 4
)

// Image is an assembled program detached from any Memory: the code words and
// the memory size they were assembled (and global addresses computed) for.
type Image struct {
	Name       string
	MemorySize int
	Code       []uint32
}

// ImageFromMemory captures the first words of mem as an image.
func ImageFromMemory(name string, mem *Memory, words int) *Image {
	code := make([]uint32, words)
	for i := range code {
		code[i] = mem.Word(uint32(i) * WordSize)
	}
	return &Image{Name: name, MemorySize: mem.Size(), Code: code}
}

// Load allocates a memory of the image's size and writes the code into it.
func (img *Image) Load() (*Memory, error) {
	mem, err := NewMemory(img.MemorySize)
	if err != nil {
		return nil, err
	}
	if len(img.Code)*WordSize > mem.Size() {
		return nil, Fatalf("image code of %d words does not fit in %d bytes", len(img.Code), mem.Size())
	}
	for i, w := range img.Code {
		mem.SetWord(uint32(i)*WordSize, w)
	}
	mem.SetFloor(uint32(len(img.Code) * WordSize))
	return mem, nil
}

// Marshal encodes the image as magic followed by a protobuf-wire message.
// Format:
//
//	[magic:4] { 1: version varint, 2: memory_size varint,
//	            3: code packed fixed32, 4: name string }
func (img *Image) Marshal() ([]byte, error) {
	size, err := safecast.Conv[uint64](img.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("image memory size: %w", err)
	}

	buf := make([]byte, 0, len(ImageMagic)+16+len(img.Code)*WordSize+len(img.Name))
	buf = append(buf, ImageMagic...)

	buf = protowire.AppendTag(buf, fieldVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, ImageVersion)

	buf = protowire.AppendTag(buf, fieldMemorySize, protowire.VarintType)
	buf = protowire.AppendVarint(buf, size)

	code := make([]byte, 0, len(img.Code)*WordSize)
	for _, w := range img.Code {
		code = protowire.AppendFixed32(code, w)
	}
	buf = protowire.AppendTag(buf, fieldCode, protowire.BytesType)
	buf = protowire.AppendBytes(buf, code)

	if img.Name != "" {
		buf = protowire.AppendTag(buf, fieldName, protowire.BytesType)
		buf = protowire.AppendString(buf, img.Name)
	}
	return buf, nil
}

// UnmarshalImage decodes an image produced by Marshal. Unknown fields are
// skipped.
func UnmarshalImage(data []byte) (*Image, error) {
	if !bytes.HasPrefix(data, ImageMagic) {
		return nil, fmt.Errorf("invalid image magic")
	}
	data = data[len(ImageMagic):]

	img := &Image{}
	var version uint64
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("image: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("image version: %w", protowire.ParseError(n))
			}
			version = v
			data = data[n:]

		case num == fieldMemorySize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("image memory size: %w", protowire.ParseError(n))
			}
			size, err := safecast.Conv[int](v)
			if err != nil {
				return nil, fmt.Errorf("image memory size: %w", err)
			}
			img.MemorySize = size
			data = data[n:]

		case num == fieldCode && typ == protowire.BytesType:
			code, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("image code: %w", protowire.ParseError(n))
			}
			if len(code)%WordSize != 0 {
				return nil, fmt.Errorf("image code length %d is not a multiple of %d", len(code), WordSize)
			}
			img.Code = make([]uint32, 0, len(code)/WordSize)
			for len(code) > 0 {
				w, m := protowire.ConsumeFixed32(code)
				if m < 0 {
					return nil, fmt.Errorf("image code word: %w", protowire.ParseError(m))
				}
				img.Code = append(img.Code, w)
				code = code[m:]
			}
			data = data[n:]

		case num == fieldName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("image name: %w", protowire.ParseError(n))
			}
			img.Name = s
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("image field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if version > ImageVersion {
		return nil, fmt.Errorf("image version %d is newer than supported version %d", version, ImageVersion)
	}
	return img, nil
}
