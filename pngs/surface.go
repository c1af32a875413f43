package pngs

// Surface is a caller-owned rectangular pixel store a decode writes into.
//
// LockPixels grants exclusive access to the backing pixels and must be
// paired with exactly one UnlockPixels on every path; the library acquires
// the lock immediately before writing and releases it via defer. The
// length of the locked slice is the surface's byte capacity.
type Surface interface {
	// Size returns the surface capacity in pixels.
	Size() (width, height int)
	LockPixels() ([]byte, error)
	UnlockPixels()
}

// MemorySurface is a Surface backed by an ordinary byte slice.
type MemorySurface struct {
	width, height int
	bytesPerPixel int
	pix           []byte
	locked        bool
}

// NewMemorySurface allocates a zeroed surface of width*height pixels at
// the given pixel stride (1 for greyscale/index/mask output, 4 for RGBA).
func NewMemorySurface(width, height, bytesPerPixel int) *MemorySurface {
	return &MemorySurface{
		width:         width,
		height:        height,
		bytesPerPixel: bytesPerPixel,
		pix:           make([]byte, width*height*bytesPerPixel),
	}
}

func (s *MemorySurface) Size() (int, int) { return s.width, s.height }

func (s *MemorySurface) LockPixels() ([]byte, error) {
	if s.locked {
		return nil, newError(ErrAllocation, "pngs: surface already locked")
	}
	s.locked = true
	return s.pix, nil
}

func (s *MemorySurface) UnlockPixels() { s.locked = false }

// BytesPerPixel returns the surface's pixel stride.
func (s *MemorySurface) BytesPerPixel() int { return s.bytesPerPixel }

// Pix exposes the backing pixels. The slice must not be used while a
// decode holds the surface lock.
func (s *MemorySurface) Pix() []byte { return s.pix }
