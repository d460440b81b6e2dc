package analysis

import "testing"

// complexityOf extracts the score of the single function named f in src.
func complexityOf(t *testing.T, src string) int {
	t.Helper()
	snap := mustExtract(t, src)
	score, ok := snap.Complexity["f"]
	if !ok {
		t.Fatalf("function f not extracted from:\n%s", src)
	}
	return score
}

func TestComplexityScores(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want int
	}{
		{"flat body", `
def f():
    return 1
`, 1},
		{"single if", `
def f(a):
    if a:
        return 1
    return 0
`, 2},
		{"if else", `
def f(a):
    if a:
        return 1
    else:
        return 0
`, 3},
		{"if elif", `
def f(a):
    if a == 1:
        return 1
    elif a == 2:
        return 2
`, 3},
		{"if elif else", `
def f(a):
    if a == 1:
        return 1
    elif a == 2:
        return 2
    else:
        return 0
`, 4},
		{"for loop", `
def f(xs):
    for x in xs:
        print(x)
`, 2},
		{"for with else", `
def f(xs):
    for x in xs:
        print(x)
    else:
        print("done")
`, 2},
		{"while loop", `
def f(n):
    while n > 0:
        n -= 1
`, 2},
		{"try except", `
def f():
    try:
        risky()
    except ValueError:
        pass
`, 2},
		{"try two excepts", `
def f():
    try:
        risky()
    except ValueError:
        pass
    except KeyError:
        pass
`, 3},
		{"try finally only", `
def f():
    try:
        risky()
    finally:
        cleanup()
`, 1},
		{"with", `
def f(p):
    with open(p) as fh:
        return fh.read()
`, 2},
		{"assert", `
def f(x):
    assert x > 0
    return x
`, 2},
		{"conditional expression", `
def f(x):
    return 1 if x else 2
`, 2},
		{"comprehension", `
def f(xs):
    return [x for x in xs]
`, 2},
		{"comprehension filter ignored", `
def f(xs):
    return [x for x in xs if x]
`, 2},
		{"double comprehension", `
def f(xs):
    return [y for x in xs for y in x]
`, 3},
		{"boolean pair", `
def f(a, b):
    if a and b:
        return 1
    return 0
`, 3},
		{"boolean triple", `
def f(a, b, c):
    if a and b or c:
        return 1
    return 0
`, 4},
		{"lambda body counts", `
def f(xs):
    k = lambda x: 1 if x else 2
    return k
`, 2},
		{"conditional in parameter default", `
def f(x=limit if fast else 0):
    return x
`, 2},
		{"boolean chain in parameter default", `
def f(flag=a and b and c):
    return flag
`, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := complexityOf(t, tc.src); got != tc.want {
				t.Errorf("complexity = %d, want %d", got, tc.want)
			}
		})
	}
}

// An N-operand boolean chain charges exactly N-1.
func TestComplexityBooleanChain(t *testing.T) {
	base := complexityOf(t, `
def f(a, b):
    return a and b
`)
	chained := complexityOf(t, `
def f(a, b, c, d):
    return a and b and c and d
`)
	if base != 2 {
		t.Errorf("two-operand chain: complexity = %d, want 2", base)
	}
	if chained != 4 {
		t.Errorf("four-operand chain: complexity = %d, want 4", chained)
	}
}

// One more independent branch raises the score by exactly one.
func TestComplexityOneMoreBranch(t *testing.T) {
	one := complexityOf(t, `
def f(a):
    if a:
        return 1
    return 0
`)
	two := complexityOf(t, `
def f(a):
    if a:
        return 1
    if a > 2:
        return 2
    return 0
`)
	if two != one+1 {
		t.Errorf("Expected one added if to add exactly 1, got %d -> %d", one, two)
	}
}

// A nested function's branches score on the nested function, never on the
// enclosing one.
func TestComplexityNestedFunctionClipped(t *testing.T) {
	snap := mustExtract(t, `
def outer(a):
    def inner(b):
        if b:
            return 1
        return 0
    return inner(a)
`)

	if got := snap.Complexity["outer"]; got != 1 {
		t.Errorf("outer complexity = %d, want 1", got)
	}
	if got := snap.Complexity["inner"]; got != 2 {
		t.Errorf("inner complexity = %d, want 2", got)
	}
}

func TestComplexityLevelBands(t *testing.T) {
	cases := []struct {
		score int
		want  Level
	}{
		{1, LevelLow},
		{10, LevelLow},
		{11, LevelMedium},
		{20, LevelMedium},
		{21, LevelHigh},
		{50, LevelHigh},
		{51, LevelCritical},
	}
	for _, tc := range cases {
		if got := ComplexityLevel(tc.score); got != tc.want {
			t.Errorf("ComplexityLevel(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestClassifyTrend(t *testing.T) {
	if got := classifyTrend(2); got != TrendIncreased {
		t.Errorf("classifyTrend(2) = %s, want %s", got, TrendIncreased)
	}
	if got := classifyTrend(-0.5); got != TrendDecreased {
		t.Errorf("classifyTrend(-0.5) = %s, want %s", got, TrendDecreased)
	}
	if got := classifyTrend(0); got != TrendUnchanged {
		t.Errorf("classifyTrend(0) = %s, want %s", got, TrendUnchanged)
	}
}
