package ingestion

import (
	"fmt"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

// ResolveIDs returns the id of every annotation, in input order. Explicit
// ids are kept. An annotation without one is named "a<index>", or
// "a<index>.<n>" when an explicit id already takes that name, so resolved
// ids never collide with each other.
//
// A repeated explicit id fails with ErrInvalidInput; the returned slice is
// complete even then.
func ResolveIDs(annotations []Annotation) ([]string, error) {
	taken := make(map[string]int, len(annotations))
	var dup error
	for i, a := range annotations {
		if a.ID == "" {
			continue
		}
		if first, ok := taken[a.ID]; ok {
			if dup == nil {
				dup = apperrors.Newf(apperrors.ErrInvalidInput, "ingestion.resolve_ids",
					"annotations[%d] repeats id %q of annotations[%d]", i, a.ID, first)
			}
			continue
		}
		taken[a.ID] = i
	}

	ids := make([]string, len(annotations))
	for i, a := range annotations {
		if a.ID != "" {
			ids[i] = a.ID
			continue
		}
		base := "a" + strconv.Itoa(i)
		id := base
		for n := 1; ; n++ {
			if _, ok := taken[id]; !ok {
				break
			}
			id = fmt.Sprintf("%s.%d", base, n)
		}
		taken[id] = i
		ids[i] = id
	}
	return ids, dup
}
