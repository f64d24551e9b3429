package jinja

// LoopInfo is the `loop` record exposed inside {% for %} bodies. The
// evaluator resolves the whole iterable to items before the loop starts, so
// Length, Revindex, Last, and Nextitem are plain slice lookups throughout.
type LoopInfo struct {
	items    []interface{}
	index0   int
	depth    int
	recurse  func(items []interface{}) (string, error)
	previtem interface{}
	hasPrev  bool
	cycleN   int
	changedV []interface{}
}

func newLoopInfo(items []interface{}, depth int, recurse func([]interface{}) (string, error)) *LoopInfo {
	return &LoopInfo{items: items, index0: -1, depth: depth, recurse: recurse}
}

func (l *LoopInfo) advance(prev interface{}, hadPrev bool) {
	l.index0++
	l.previtem = prev
	l.hasPrev = hadPrev
}

func (l *LoopInfo) Index() int    { return l.index0 + 1 }
func (l *LoopInfo) Index0() int   { return l.index0 }
func (l *LoopInfo) Revindex() int { return len(l.items) - l.index0 }
func (l *LoopInfo) Revindex0() int {
	return len(l.items) - l.index0 - 1
}
func (l *LoopInfo) First() bool  { return l.index0 == 0 }
func (l *LoopInfo) Last() bool   { return l.index0 == len(l.items)-1 }
func (l *LoopInfo) Length() int  { return len(l.items) }
func (l *LoopInfo) Depth() int   { return l.depth + 1 }
func (l *LoopInfo) Depth0() int  { return l.depth }
func (l *LoopInfo) Previtem() interface{} {
	if !l.hasPrev {
		return &Undefined{Kind: LenientUndefined, Name: "loop.previtem"}
	}
	return l.previtem
}
func (l *LoopInfo) Nextitem() interface{} {
	if l.index0+1 < len(l.items)-1+1 && l.index0+1 < len(l.items) {
		return l.items[l.index0+1]
	}
	return &Undefined{Kind: LenientUndefined, Name: "loop.nextitem"}
}

func (l *LoopInfo) Cycle(args []interface{}) interface{} {
	if len(args) == 0 {
		return nil
	}
	v := args[l.index0%len(args)]
	return v
}

func (l *LoopInfo) Changed(args []interface{}) bool {
	changed := l.changedV == nil || len(l.changedV) != len(args)
	if !changed {
		for i := range args {
			if !Equal(l.changedV[i], args[i]) {
				changed = true
				break
			}
		}
	}
	l.changedV = append([]interface{}{}, args...)
	return changed
}

func (l *LoopInfo) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"index": l.Index(), "index0": l.Index0(),
		"revindex": l.Revindex(), "revindex0": l.Revindex0(),
		"first": l.First(), "last": l.Last(), "length": l.Length(),
		"depth": l.Depth(), "depth0": l.Depth0(),
		"previtem": l.Previtem(), "nextitem": l.Nextitem(),
		"cycle": FuncValue(func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return l.Cycle(args), nil
		}),
		"changed": FuncValue(func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return l.Changed(args), nil
		}),
	}
}

// FuncValue is a Go closure exposed to templates as a callable value
// (loop.cycle, loop.changed, namespace(), range(), macros, …).
type FuncValue func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)
