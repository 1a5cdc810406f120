package pool

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
)

// AllocInto points *pptr at a fresh block and reports whether one was
// available; on exhaustion *pptr is set to nil. pptr must be a **T where T
// fits in a block. The arena is not scanned by the garbage collector, so T
// must not hold Go pointers.
func (p *Pool) AllocInto(pptr interface{}) bool {
	p.checkTarget(pptr)
	slot := (*unsafe.Pointer)(reflect2.PtrOf(pptr))
	off, ok := p.alloc()
	if !ok {
		*slot = nil
		return false
	}
	*slot = unsafe.Pointer(&p.arena[off])
	return true
}

// FreeObject returns the block obj points into. obj must be a *T obtained
// from AllocInto; a nil *T is ignored.
func (p *Pool) FreeObject(obj interface{}) error {
	typ := reflect2.TypeOf(obj)
	if typ == nil || typ.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("pool: FreeObject needs a pointer, got %v", typ))
	}
	if reflect2.IsNil(obj) {
		return nil
	}
	return p.release(uintptr(reflect2.PtrOf(obj)))
}

func (p *Pool) checkTarget(pptr interface{}) {
	typ := reflect2.TypeOf(pptr)
	if typ == nil || typ.Kind() != reflect.Ptr || reflect2.IsNil(pptr) {
		panic(fmt.Sprintf("pool: AllocInto needs a non-nil **T, got %v", typ))
	}
	elem := typ.(reflect2.PtrType).Elem()
	if elem.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("pool: AllocInto needs a non-nil **T, got %v", typ))
	}
	obj := elem.(reflect2.PtrType).Elem()
	if size := int(obj.Type1().Size()); size > p.blockSize {
		panic(fmt.Sprintf("pool: %v is %d bytes, blocks are %d", obj, size, p.blockSize))
	}
}
