// Package order provides sorting by custom orderings.
package order

import "sort"

type sorter[E any] struct {
	src []E
	lt  func(left, right E) bool
}

func (s sorter[E]) Len() int {
	return len(s.src)
}

func (s sorter[E]) Swap(i, j int) {
	s.src[i], s.src[j] = s.src[j], s.src[i]
}

func (s sorter[E]) Less(i, j int) bool {
	return s.lt(s.src[i], s.src[j])
}

// By returns a sorted copy of items. lt must return true if left comes before
// right. The sort is stable.
//
// items will not be modified.
func By[E any](items []E, lt func(left E, right E) bool) []E {
	if len(items) == 0 || lt == nil {
		return items
	}

	s := sorter[E]{
		src: make([]E, len(items)),
		lt:  lt,
	}

	copy(s.src, items)
	sort.Stable(s)
	return s.src
}

var methodRank = map[string]int{
	"GET":     0,
	"HEAD":    1,
	"POST":    2,
	"PUT":     3,
	"PATCH":   4,
	"DELETE":  5,
	"OPTIONS": 6,
}

// Methods returns a copy of the HTTP methods in meths ordered the way they are
// conventionally listed: reads, then creates, updates, and deletes. Methods
// with no conventional place go last in alphabetical order.
func Methods(meths []string) []string {
	return By(meths, func(left, right string) bool {
		lr, lok := methodRank[left]
		rr, rok := methodRank[right]

		switch {
		case lok && rok:
			return lr < rr
		case lok != rok:
			return lok
		default:
			return left < right
		}
	})
}
