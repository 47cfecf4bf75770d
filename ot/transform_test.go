package ot

import "testing"

// verifyTransform checks the OT invariant: Apply(Apply(doc,a),bPrime) == Apply(Apply(doc,b),aPrime)
func verifyTransform(t *testing.T, doc string, a, b Operation) string {
	t.Helper()

	aPrime, bPrime, err := Transform(a, b)
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}

	afterA, err := Apply(doc, a)
	if err != nil {
		t.Fatalf("Apply(doc, a) error: %v", err)
	}
	path1, err := Apply(afterA, bPrime)
	if err != nil {
		t.Fatalf("Apply(afterA, bPrime) error: %v\nafterA=%q, bPrime=%+v", err, afterA, bPrime)
	}

	afterB, err := Apply(doc, b)
	if err != nil {
		t.Fatalf("Apply(doc, b) error: %v", err)
	}
	path2, err := Apply(afterB, aPrime)
	if err != nil {
		t.Fatalf("Apply(afterB, aPrime) error: %v\nafterB=%q, aPrime=%+v", err, afterB, aPrime)
	}

	if path1 != path2 {
		t.Errorf("convergence failed:\n  doc=%q\n  a=%+v → %q\n  b=%+v → %q\n  path1(a,bP)=%q\n  path2(b,aP)=%q\n  aPrime=%+v\n  bPrime=%+v",
			doc, a.Ops, afterA, b.Ops, afterB, path1, path2, aPrime.Ops, bPrime.Ops)
	}
	return path1
}

func TestTransform_InsertInsert(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		a, b Operation
		want string // expected converged result
	}{
		{
			"both insert at different positions",
			"hello",
			NewInsert(1, "X", 5), // "hXello"
			NewInsert(3, "Y", 5), // "helYlo"
			"hXelYlo",
		},
		{
			"both insert at same position (a wins tie-break)",
			"hello",
			NewInsert(2, "A", 5),
			NewInsert(2, "B", 5),
			"heABllo",
		},
		{
			"insert at start and end",
			"abc",
			NewInsert(0, "X", 3),
			NewInsert(3, "Y", 3),
			"XabcY",
		},
		{
			"both insert at start",
			"abc",
			NewInsert(0, "X", 3),
			NewInsert(0, "Y", 3),
			"XYabc",
		},
		{
			"multi-char inserts",
			"ab",
			NewInsert(1, "XY", 2),
			NewInsert(1, "ZW", 2),
			"aXYZWb",
		},
		{
			"insert into empty doc",
			"",
			Operation{[]Component{{Insert: "A"}}},
			Operation{[]Component{{Insert: "B"}}},
			"AB",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifyTransform(t, tt.doc, tt.a, tt.b); got != tt.want {
				t.Errorf("converged to %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransform_InsertDelete(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		a, b Operation
		want string
	}{
		{
			"insert before delete",
			"abcde",
			NewInsert(1, "X", 5), // "aXbcde"
			NewDelete(3, 1, 5),   // "abce" (delete 'd')
			"aXbce",
		},
		{
			"insert after delete",
			"abcde",
			NewInsert(4, "X", 5), // "abcdXe"
			NewDelete(1, 1, 5),   // "acde" (delete 'b')
			"acdXe",
		},
		{
			"insert at delete position",
			"abcde",
			NewInsert(2, "X", 5), // "abXcde"
			NewDelete(2, 1, 5),   // "abde" (delete 'c')
			"abXde",
		},
		{
			"insert inside delete range",
			"abcde",
			NewInsert(2, "X", 5), // "abXcde"
			NewDelete(1, 3, 5),   // "ae" (delete 'bcd')
			"aXe",
		},
		{
			"delete all, insert in middle",
			"abc",
			NewInsert(1, "X", 3),
			NewDelete(0, 3, 3),
			"X",
		},
		{
			"replace overlapping insert",
			"abcde",
			NewInsert(2, "X", 5),
			NewReplace(1, 3, "Q", 5), // "aQe"
			"aXQe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifyTransform(t, tt.doc, tt.a, tt.b); got != tt.want {
				t.Errorf("converged to %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransform_DeleteDelete(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		a, b Operation
		want string
	}{
		{
			"disjoint deletes (a before b)",
			"abcdef",
			NewDelete(0, 2, 6), // "cdef"
			NewDelete(4, 2, 6), // "abcd"
			"cd",
		},
		{
			"disjoint deletes (b before a)",
			"abcdef",
			NewDelete(4, 2, 6), // "abcd"
			NewDelete(0, 2, 6), // "cdef"
			"cd",
		},
		{
			"same range deleted once",
			"abcdef",
			NewDelete(1, 3, 6),
			NewDelete(1, 3, 6),
			"aef",
		},
		{
			"overlapping deletes",
			"abcdef",
			NewDelete(1, 3, 6), // "aef" (delete 'bcd')
			NewDelete(2, 3, 6), // "abf" (delete 'cde')
			"af",
		},
		{
			"a contains b",
			"abcdef",
			NewDelete(1, 4, 6), // "af" (delete 'bcde')
			NewDelete(2, 2, 6), // "abef" (delete 'cd')
			"af",
		},
		{
			"delete entire doc twice",
			"abc",
			NewDelete(0, 3, 3),
			NewDelete(0, 3, 3),
			"",
		},
		{
			"adjacent deletes",
			"abcdef",
			NewDelete(0, 3, 6), // "def"
			NewDelete(3, 3, 6), // "abc"
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifyTransform(t, tt.doc, tt.a, tt.b); got != tt.want {
				t.Errorf("converged to %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransform_ErrorOnMismatchedBaseLens(t *testing.T) {
	a := NewInsert(0, "x", 5)
	b := NewInsert(0, "y", 3)
	_, _, err := Transform(a, b)
	if err == nil {
		t.Error("expected error for mismatched base lengths")
	}
}

func TestTransform_Noop(t *testing.T) {
	doc := "hello"
	a := Operation{[]Component{{Retain: 5}}}
	b := NewInsert(2, "X", 5)
	if got := verifyTransform(t, doc, a, b); got != "heXllo" {
		t.Errorf("converged to %q, want %q", got, "heXllo")
	}
}

func TestCompact(t *testing.T) {
	ops := []Component{
		{Retain: 1}, {Retain: 2},
		{Insert: "ab"}, {Insert: "c"},
		{Delete: 1}, {Delete: 1},
		{Retain: 3},
	}
	got := compact(ops)
	want := []Component{{Retain: 3}, {Insert: "abc"}, {Delete: 2}, {Retain: 3}}
	if len(got) != len(want) {
		t.Fatalf("compact() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("compact()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
