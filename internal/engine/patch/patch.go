// # internal/engine/patch/patch.go
package patch

import (
	"fmt"
	"sort"
	"strings"

	"sfclink/internal/core/errors"
)

// Patcher accumulates edits against an immutable source string. All offsets
// refer to the original string; nothing is applied until String is called.
//
// At a single position, InsertAfter text (attached to the preceding character)
// is emitted before InsertBefore text (attached to the following character).
// Insertions at the same position and side keep call order. Insertions are
// never swallowed by a Remove or Overwrite that starts or ends at their
// position, but an insertion strictly inside a replaced span is rejected.
//
// Concurrency: a Patcher is owned by a single goroutine.
type Patcher struct {
	original string
	intro    []string // reversed at materialization, last Prepend first
	outro    []string
	spans    []span
	inserts  map[int]*slot
}

type span struct {
	start, end int
	text       string
}

type slot struct {
	after  []string
	before []string
}

func New(original string) *Patcher {
	return &Patcher{
		original: original,
		inserts:  make(map[int]*slot),
	}
}

// Original returns the unmodified source.
func (p *Patcher) Original() string { return p.original }

func (p *Patcher) Prepend(text string) {
	p.intro = append(p.intro, text)
}

func (p *Patcher) Append(text string) {
	p.outro = append(p.outro, text)
}

// InsertBefore places text immediately before the character at pos.
func (p *Patcher) InsertBefore(pos int, text string) error {
	s, err := p.slotAt(pos)
	if err != nil {
		return err
	}
	s.before = append(s.before, text)
	return nil
}

// InsertAfter places text immediately after the character at pos-1.
func (p *Patcher) InsertAfter(pos int, text string) error {
	s, err := p.slotAt(pos)
	if err != nil {
		return err
	}
	s.after = append(s.after, text)
	return nil
}

func (p *Patcher) Remove(start, end int) error {
	if start == end {
		return nil
	}
	return p.replace(start, end, "")
}

func (p *Patcher) Overwrite(start, end int, text string) error {
	if start == end {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("cannot overwrite empty range at %d", start))
	}
	return p.replace(start, end, text)
}

func (p *Patcher) replace(start, end int, text string) error {
	if err := p.checkRange(start, end); err != nil {
		return err
	}
	for _, existing := range p.spans {
		if start < existing.end && existing.start < end {
			return overlapError(start, end, existing.start, existing.end)
		}
	}
	for pos := range p.inserts {
		if start < pos && pos < end {
			return overlapError(start, end, pos, pos)
		}
	}
	p.spans = append(p.spans, span{start: start, end: end, text: text})
	return nil
}

func (p *Patcher) slotAt(pos int) (*slot, error) {
	if err := p.checkRange(pos, pos); err != nil {
		return nil, err
	}
	for _, existing := range p.spans {
		if existing.start < pos && pos < existing.end {
			return nil, overlapError(pos, pos, existing.start, existing.end)
		}
	}
	s := p.inserts[pos]
	if s == nil {
		s = &slot{}
		p.inserts[pos] = s
	}
	return s, nil
}

func (p *Patcher) checkRange(start, end int) error {
	if start < 0 || end > len(p.original) || start > end {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("range [%d,%d) out of bounds for length %d", start, end, len(p.original)))
	}
	return nil
}

func overlapError(start, end, otherStart, otherEnd int) error {
	err := errors.New(errors.CodeOverlappingEdit,
		fmt.Sprintf("edit [%d,%d) overlaps existing edit [%d,%d)", start, end, otherStart, otherEnd))
	return errors.AddContext(err, errors.CtxPosition, start)
}

// HasChanges reports whether any edit has been recorded.
func (p *Patcher) HasChanges() bool {
	return len(p.intro) > 0 || len(p.outro) > 0 || len(p.spans) > 0 || len(p.inserts) > 0
}

// String materializes the edited text in a single pass over the original.
func (p *Patcher) String() string {
	spans := make([]span, len(p.spans))
	copy(spans, p.spans)
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	positions := make([]int, 0, len(p.inserts))
	for pos := range p.inserts {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	var b strings.Builder
	b.Grow(len(p.original) + 64)
	for i := len(p.intro) - 1; i >= 0; i-- {
		b.WriteString(p.intro[i])
	}

	n := len(p.original)
	pos, si, ii := 0, 0, 0
	for {
		if ii < len(positions) && positions[ii] == pos {
			s := p.inserts[pos]
			for _, text := range s.after {
				b.WriteString(text)
			}
			for _, text := range s.before {
				b.WriteString(text)
			}
			ii++
		}
		if si < len(spans) && spans[si].start == pos {
			b.WriteString(spans[si].text)
			pos = spans[si].end
			si++
			continue
		}
		if pos >= n {
			break
		}
		next := n
		if ii < len(positions) && positions[ii] < next {
			next = positions[ii]
		}
		if si < len(spans) && spans[si].start < next {
			next = spans[si].start
		}
		b.WriteString(p.original[pos:next])
		pos = next
	}

	for _, text := range p.outro {
		b.WriteString(text)
	}
	return b.String()
}
