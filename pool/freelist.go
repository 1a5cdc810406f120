package pool

import "unsafe"

// endOfList terminates the free list. It can never be a slot offset because
// offsets are multiples of MaxAlign.
const endOfList = ^uintptr(0)

// link reads the offset of the next free block out of the free block at off.
func (p *Pool) link(off uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(&p.arena[off]))
}

func (p *Pool) setLink(off, next uintptr) {
	*(*uintptr)(unsafe.Pointer(&p.arena[off])) = next
}

// relink threads every block into the free list in address order.
func (p *Pool) relink() {
	bs := uintptr(p.blockSize)
	last := uintptr(p.total-1) * bs
	for off := uintptr(0); off < last; off += bs {
		p.setLink(off, off+bs)
	}
	p.setLink(last, endOfList)
	p.head = 0
	p.free = p.total
}

func (p *Pool) pop() (uintptr, bool) {
	off := p.head
	if off == endOfList {
		return 0, false
	}
	p.head = p.link(off)
	p.free--
	return off, true
}

func (p *Pool) push(off uintptr) {
	p.setLink(off, p.head)
	p.head = off
	p.free++
}
