package bufferpool

import "container/list"

// orderedList is a thin wrapper around container/list used to back the
// LRU-K replacer's cold and warm pools. It carries no mutex of its own: the
// replacer already serializes every operation under a single lock, so a
// second lock here would only add ceremony.
type orderedList struct {
	l *list.List
}

func newOrderedList() *orderedList {
	return &orderedList{l: list.New()}
}

func (o *orderedList) PushBack(v *lruKNode) *list.Element {
	return o.l.PushBack(v)
}

// InsertBefore inserts v immediately before mark and returns its element.
func (o *orderedList) InsertBefore(v *lruKNode, mark *list.Element) *list.Element {
	return o.l.InsertBefore(v, mark)
}

func (o *orderedList) Front() *list.Element {
	return o.l.Front()
}

func (o *orderedList) Remove(e *list.Element) {
	o.l.Remove(e)
}

func (o *orderedList) Len() int {
	return o.l.Len()
}
