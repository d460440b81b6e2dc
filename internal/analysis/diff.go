package analysis

import (
	"fmt"
	"sort"
)

// DiffResult is the structural delta between two snapshots of the same file.
// The name collections are sets; they are kept sorted only so repeated runs
// marshal identically, display ordering belongs to the presentation layer.
type DiffResult struct {
	AddedFunctions    []string `json:"added_functions"`
	RemovedFunctions  []string `json:"removed_functions"`
	ModifiedFunctions []string `json:"modified_functions"`

	AddedClasses    []string `json:"added_classes"`
	RemovedClasses  []string `json:"removed_classes"`
	ModifiedClasses []string `json:"modified_classes"`

	AddedImports    []string `json:"added_imports"`
	RemovedImports  []string `json:"removed_imports"`
	ModifiedImports []string `json:"modified_imports"`

	MethodChanges     map[string]MethodChange     `json:"method_changes"`
	DecoratorChanges  map[string]DecoratorChange  `json:"decorator_changes"`
	DocstringChanges  map[string]DocstringChange  `json:"docstring_changes"`
	ComplexityChanges map[string]ComplexityChange `json:"complexity_changes"`
	AnnotationChanges map[string]AnnotationChange `json:"annotation_changes"`
}

// MethodChange lists the direct methods a class gained and lost.
type MethodChange struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

type DecoratorChange struct {
	Old      []string `json:"old"`
	New      []string `json:"new"`
	Severity Severity `json:"severity"`
}

type DocstringChange struct {
	Old      *string  `json:"old"`
	New      *string  `json:"new"`
	Severity Severity `json:"severity"`
}

// ComplexityChange carries the before/after scores of one function. Level is
// the band of the new score and doubles as the entry severity; a removed
// symbol scores zero.
type ComplexityChange struct {
	Old   *int  `json:"old"`
	New   *int  `json:"new"`
	Delta int   `json:"delta"`
	Trend Trend `json:"trend"`
	Level Level `json:"level"`
}

type AnnotationChange struct {
	Old      *float64 `json:"old"`
	New      *float64 `json:"new"`
	Delta    float64  `json:"delta"`
	Trend    Trend    `json:"trend"`
	Severity Severity `json:"severity"`
}

// Diff compares two snapshots with pure set algebra; nothing is re-parsed.
// modified_* is the literal name intersection: presence on both sides, not a
// deep equality check.
func Diff(oldSnap, newSnap *Snapshot) *DiffResult {
	d := &DiffResult{
		AddedFunctions:    setDifference(newSnap.Functions, oldSnap.Functions),
		RemovedFunctions:  setDifference(oldSnap.Functions, newSnap.Functions),
		ModifiedFunctions: setIntersection(oldSnap.Functions, newSnap.Functions),

		AddedClasses:    setDifference(newSnap.Classes, oldSnap.Classes),
		RemovedClasses:  setDifference(oldSnap.Classes, newSnap.Classes),
		ModifiedClasses: setIntersection(oldSnap.Classes, newSnap.Classes),

		AddedImports:    setDifference(newSnap.Imports, oldSnap.Imports),
		RemovedImports:  setDifference(oldSnap.Imports, newSnap.Imports),
		ModifiedImports: setIntersection(oldSnap.Imports, newSnap.Imports),

		MethodChanges:     make(map[string]MethodChange),
		DecoratorChanges:  make(map[string]DecoratorChange),
		DocstringChanges:  make(map[string]DocstringChange),
		ComplexityChanges: make(map[string]ComplexityChange),
		AnnotationChanges: make(map[string]AnnotationChange),
	}

	diffMethods(oldSnap, newSnap, d)
	diffDecorators(oldSnap, newSnap, d)
	diffDocstrings(oldSnap, newSnap, d)
	diffComplexity(oldSnap, newSnap, d)
	diffAnnotations(oldSnap, newSnap, d)

	return d
}

// DiffSources parses both versions and diffs their snapshots. Either side
// failing to parse surfaces as a *parser.ParseError saying which one.
func DiffSources(oldSrc, newSrc []byte) (*DiffResult, error) {
	oldSnap, err := Extract(oldSrc)
	if err != nil {
		return nil, fmt.Errorf("old version: %w", err)
	}
	newSnap, err := Extract(newSrc)
	if err != nil {
		return nil, fmt.Errorf("new version: %w", err)
	}
	return Diff(oldSnap, newSnap), nil
}

// diffMethods keys every class whose direct method set changed. A class on
// one side only reports all its methods as added or removed.
func diffMethods(oldSnap, newSnap *Snapshot, d *DiffResult) {
	for class := range unionKeys(oldSnap.ClassMethods, newSnap.ClassMethods) {
		oldMethods := oldSnap.ClassMethods[class]
		newMethods := newSnap.ClassMethods[class]
		added := setDifference(newMethods, oldMethods)
		removed := setDifference(oldMethods, newMethods)
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		d.MethodChanges[class] = MethodChange{Added: added, Removed: removed}
	}
}

func diffDecorators(oldSnap, newSnap *Snapshot, d *DiffResult) {
	for name := range unionKeys(oldSnap.Decorators, newSnap.Decorators) {
		oldDecs := oldSnap.Decorators[name]
		newDecs := newSnap.Decorators[name]
		if sameStringSet(oldDecs, newDecs) {
			continue
		}
		d.DecoratorChanges[name] = DecoratorChange{
			Old:      sortedCopy(oldDecs),
			New:      sortedCopy(newDecs),
			Severity: SeverityInfo,
		}
	}
}

func diffDocstrings(oldSnap, newSnap *Snapshot, d *DiffResult) {
	for name := range unionKeys(oldSnap.Docstrings, newSnap.Docstrings) {
		oldDoc, hasOld := oldSnap.Docstrings[name]
		newDoc, hasNew := newSnap.Docstrings[name]
		if hasOld == hasNew && oldDoc == newDoc {
			continue
		}
		change := DocstringChange{Severity: SeverityInfo}
		if hasOld {
			change.Old = &oldDoc
		}
		if hasNew {
			change.New = &newDoc
		}
		d.DocstringChanges[name] = change
	}
}

func diffComplexity(oldSnap, newSnap *Snapshot, d *DiffResult) {
	for name := range unionKeys(oldSnap.Complexity, newSnap.Complexity) {
		oldScore, hasOld := oldSnap.Complexity[name]
		newScore, hasNew := newSnap.Complexity[name]

		var change ComplexityChange
		switch {
		case hasOld && hasNew:
			if oldScore == newScore {
				continue
			}
			change = ComplexityChange{
				Old:   &oldScore,
				New:   &newScore,
				Delta: newScore - oldScore,
				Trend: classifyTrend(float64(newScore - oldScore)),
				Level: ComplexityLevel(newScore),
			}
		case hasNew:
			change = ComplexityChange{
				New:   &newScore,
				Delta: newScore,
				Trend: TrendNewSymbol,
				Level: ComplexityLevel(newScore),
			}
		default:
			change = ComplexityChange{
				Old:   &oldScore,
				Delta: -oldScore,
				Trend: TrendRemovedSymbol,
				Level: ComplexityLevel(0),
			}
		}
		d.ComplexityChanges[name] = change
	}
}

func diffAnnotations(oldSnap, newSnap *Snapshot, d *DiffResult) {
	for name := range unionKeys(oldSnap.Annotations, newSnap.Annotations) {
		oldPct, hasOld := oldSnap.Annotations[name]
		newPct, hasNew := newSnap.Annotations[name]

		var change AnnotationChange
		switch {
		case hasOld && hasNew:
			if oldPct == newPct {
				continue
			}
			change = AnnotationChange{
				Old:   &oldPct,
				New:   &newPct,
				Delta: round1(newPct - oldPct),
				Trend: classifyTrend(newPct - oldPct),
			}
		case hasNew:
			change = AnnotationChange{New: &newPct, Delta: newPct, Trend: TrendNewSymbol}
		default:
			change = AnnotationChange{Old: &oldPct, Delta: -oldPct, Trend: TrendRemovedSymbol}
		}
		change.Severity = SeverityInfo
		d.AnnotationChanges[name] = change
	}
}

func setDifference(a, b map[string]bool) []string {
	out := make([]string, 0)
	for name := range a {
		if !b[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func setIntersection(a, b map[string]bool) []string {
	out := make([]string, 0)
	for name := range a {
		if b[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func unionKeys[V any](maps ...map[string]V) map[string]bool {
	keys := make(map[string]bool)
	for _, m := range maps {
		for k := range m {
			keys[k] = true
		}
	}
	return keys
}

// sameStringSet compares as sets: order and duplicates carry no meaning.
func sameStringSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, s := range a {
		as[s] = true
	}
	bs := make(map[string]bool, len(b))
	for _, s := range b {
		bs[s] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if !bs[s] {
			return false
		}
	}
	return true
}
