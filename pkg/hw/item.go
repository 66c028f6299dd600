package hw

import "fmt"

// Item is a value programmed into the dataplane together with the result of
// the command that programmed it. It is only Ok once a command succeeded.
type Item[T any] struct {
	data T
	rc   RC
}

func NewItem[T any](data T, rc RC) Item[T] {
	return Item[T]{data: data, rc: rc}
}

func (i Item[T]) Ok() bool {
	return i.rc == RCOK
}

func (i Item[T]) Data() T {
	return i.data
}

func (i Item[T]) RC() RC {
	return i.rc
}

func (i *Item[T]) Set(rc RC) {
	i.rc = rc
}

func (i *Item[T]) Update(data T, rc RC) {
	i.data = data
	i.rc = rc
}

func (i Item[T]) String() string {
	return fmt.Sprintf("hw-item:[rc:%s data:%v]", i.rc, i.data)
}
