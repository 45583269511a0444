package vm

import "fmt"

// DefaultObjectBase is the first object id handed out by a fresh Heap.
const DefaultObjectBase = 2024

type object struct {
	kind   Kind // KindStruct or KindArray
	fields map[string]Value
	elems  []Value
}

// Heap is the arena holding every struct and array allocated during a run.
// Ids are base+index into objects; nothing is ever freed.
type Heap struct {
	base    int64
	objects []*object
}

func NewHeap(base int64) *Heap {
	return &Heap{base: base}
}

// Len reports how many objects have been allocated.
func (h *Heap) Len() int { return len(h.objects) }

func (h *Heap) AllocStruct() Value {
	h.objects = append(h.objects, &object{kind: KindStruct, fields: make(map[string]Value)})
	return structRef(h.base + int64(len(h.objects)-1))
}

func (h *Heap) AllocArray(n int) Value {
	elems := make([]Value, n)
	for i := range elems {
		elems[i] = Null
	}
	h.objects = append(h.objects, &object{kind: KindArray, elems: elems})
	return arrayRef(h.base + int64(len(h.objects)-1))
}

func (h *Heap) lookup(ref Value, kind Kind) (*object, error) {
	if ref.Kind == KindNull {
		return nil, fmt.Errorf("null object reference")
	}
	if ref.Kind != kind {
		return nil, fmt.Errorf("expecting %s reference, found %s", kind, ref.Kind)
	}
	idx := ref.Int - h.base
	if idx < 0 || idx >= int64(len(h.objects)) || h.objects[idx].kind != kind {
		return nil, fmt.Errorf("unknown %s object id %d", kind, ref.Int)
	}
	return h.objects[idx], nil
}

func (h *Heap) SetField(ref Value, field string, v Value) error {
	obj, err := h.lookup(ref, KindStruct)
	if err != nil {
		return err
	}
	obj.fields[field] = v
	return nil
}

func (h *Heap) GetField(ref Value, field string) (Value, error) {
	obj, err := h.lookup(ref, KindStruct)
	if err != nil {
		return Null, err
	}
	v, ok := obj.fields[field]
	if !ok {
		return Null, fmt.Errorf("unknown field %q of object %d", field, ref.Int)
	}
	return v, nil
}

func (h *Heap) checkIndex(obj *object, idx Value) (int, error) {
	if idx.Kind != KindInt {
		return 0, fmt.Errorf("array index must be an int, found %s", idx.Kind)
	}
	if idx.Int < 0 || idx.Int >= int64(len(obj.elems)) {
		return 0, fmt.Errorf("array index %d out of bounds (length %d)", idx.Int, len(obj.elems))
	}
	return int(idx.Int), nil
}

func (h *Heap) SetIndex(ref, idx, v Value) error {
	obj, err := h.lookup(ref, KindArray)
	if err != nil {
		return err
	}
	i, err := h.checkIndex(obj, idx)
	if err != nil {
		return err
	}
	obj.elems[i] = v
	return nil
}

func (h *Heap) GetIndex(ref, idx Value) (Value, error) {
	obj, err := h.lookup(ref, KindArray)
	if err != nil {
		return Null, err
	}
	i, err := h.checkIndex(obj, idx)
	if err != nil {
		return Null, err
	}
	return obj.elems[i], nil
}

// ArrayLen returns the fixed length of an array object.
func (h *Heap) ArrayLen(ref Value) (int, error) {
	obj, err := h.lookup(ref, KindArray)
	if err != nil {
		return 0, err
	}
	return len(obj.elems), nil
}
