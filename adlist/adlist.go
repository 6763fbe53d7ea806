// Package adlist is a generic doubly linked list that owns its nodes and
// exposes neighbour operations, so callers never manage prev/next pointers.
package adlist

type List[T any] struct {
	head, tail *ListNode[T]
	len        int
}

func Create[T any]() *List[T] {
	return new(List[T])
}

func (l *List[T]) Len() int {
	return l.len
}

func (l *List[T]) First() *ListNode[T] {
	return l.head
}

func (l *List[T]) Last() *ListNode[T] {
	return l.tail
}

func (l *List[T]) AddNodeHead(value T) *ListNode[T] {
	node := &ListNode[T]{value: value}
	if l.len == 0 {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}
	l.len++
	return node
}

func (l *List[T]) AddNodeTail(value T) *ListNode[T] {
	node := &ListNode[T]{value: value}
	if l.len == 0 {
		l.head = node
		l.tail = node
	} else {
		node.prev = l.tail
		l.tail.next = node
		l.tail = node
	}
	l.len++
	return node
}

// InsertNode links value next to old, after it when after is true.
func (l *List[T]) InsertNode(old *ListNode[T], value T, after bool) *ListNode[T] {
	node := &ListNode[T]{value: value}
	if after {
		node.prev = old
		node.next = old.next
		if l.tail == old {
			l.tail = node
		}
	} else {
		node.next = old
		node.prev = old.prev
		if l.head == old {
			l.head = node
		}
	}
	if node.prev != nil {
		node.prev.next = node
	}
	if node.next != nil {
		node.next.prev = node
	}
	l.len++
	return node
}

// DelNode unlinks node; it must belong to l.
func (l *List[T]) DelNode(node *ListNode[T]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev, node.next = nil, nil
	l.len--
}

// Index returns the node at index, negative indexes counting from the tail.
func (l *List[T]) Index(index int) *ListNode[T] {
	var n *ListNode[T]
	if index < 0 {
		index = -index - 1
		n = l.tail
		for ; index > 0 && n != nil; index-- {
			n = n.prev
		}
	} else {
		n = l.head
		for ; index > 0 && n != nil; index-- {
			n = n.next
		}
	}
	return n
}

// Empty drops every node.
func (l *List[T]) Empty() {
	l.head, l.tail, l.len = nil, nil, 0
}

func (l *List[T]) Iterator(direction int) *ListIter[T] {
	iter := &ListIter[T]{direction: direction}
	if direction == AlStartHead {
		iter.next = l.head
	} else {
		iter.next = l.tail
	}
	return iter
}
