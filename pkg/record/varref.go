package record

import "unsafe"

// varRef is the inline (pointer, length) pair a varying field stores in
// the fixed record area. The bytes it points at live in a caller-owned
// varlen arena (pkg/arena) and must outlive every Ref that reads them —
// this is the same ownership rule the arena's own Reset has.
type varRef struct {
	ptr unsafe.Pointer
	len int32
}

const (
	varRefSize  = int(unsafe.Sizeof(varRef{}))
	varRefAlign = int(unsafe.Alignof(varRef{}))
)

func writeVarRef(dst []byte, data []byte) {
	vr := (*varRef)(unsafe.Pointer(&dst[0]))
	if len(data) == 0 {
		vr.ptr = nil
		vr.len = 0
		return
	}
	vr.ptr = unsafe.Pointer(&data[0])
	vr.len = int32(len(data))
}

func readVarRef(src []byte) []byte {
	vr := (*varRef)(unsafe.Pointer(&src[0]))
	if vr.len == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(vr.ptr), int(vr.len))
}
