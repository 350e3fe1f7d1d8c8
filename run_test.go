package main

import (
	"strings"
	"testing"

	"evalscript/vm"
)

func runSource(t *testing.T, src string) (vm.Value, string) {
	t.Helper()
	var out strings.Builder
	v, err := run(src, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("run(%q): %v", src, err)
	}
	return v, out.String()
}

func TestArithmeticPrecedencePrint(t *testing.T) {
	_, out := runSource(t, "print(1 + 2 * 3)")
	if out != "7\n" {
		t.Errorf("got %q, want %q", out, "7\n")
	}
}

func TestFactorialRecursion(t *testing.T) {
	_, out := runSource(t, `
fn fact(n) { if n <= 1 { 1 } else { n * fact(n - 1) } };
print(fact(10))
`)
	if out != "3628800\n" {
		t.Errorf("got %q, want %q", out, "3628800\n")
	}
}

func TestMemoizedFibonacci(t *testing.T) {
	_, out := runSource(t, `
memoized fn fib(n) { if n <= 1 { n } else { fib(n - 1) + fib(n - 2) } };
print(fib(20))
`)
	if out != "6765\n" {
		t.Errorf("got %q, want %q", out, "6765\n")
	}
}

func TestForLoopWithContinue(t *testing.T) {
	_, out := runSource(t, `
for i in 0..10 {
    if i % 2 == 1 { continue };
    print(i)
}
`)
	want := "0\n2\n4\n6\n8\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestListComprehensionWithFilter(t *testing.T) {
	_, out := runSource(t, "print([x * 2 for x in [1, 2, 3, 4, 5] if x % 2 == 0])")
	if out != "[4, 8]\n" {
		t.Errorf("got %q, want %q", out, "[4, 8]\n")
	}
}

func TestNestedPatternDestructure(t *testing.T) {
	_, out := runSource(t, `
(a, (b, c)) = (1, (2, 3));
print(a, b, c)
`)
	if out != "1 2 3\n" {
		t.Errorf("got %q, want %q", out, "1 2 3\n")
	}
}

func TestMapWithDefault(t *testing.T) {
	_, out := runSource(t, `
m = defaultmap(0);
m["x"] = m["x"] + 1;
m["x"] = m["x"] + 1;
print(m["x"], m["y"]);
print(m.len())
`)
	want := "2 0\n2\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestUnmatchedMatchRaisesRuntimeError(t *testing.T) {
	_, err := run("match 5 { 0 => 1 }", strings.NewReader(""), &strings.Builder{})
	if err == nil {
		t.Fatal("expected a runtime error for an unmatched match expression")
	}
	if !strings.Contains(err.Error(), "No arm matched the value") {
		t.Errorf("got %q, want it to mention 'No arm matched the value'", err.Error())
	}
}

func TestWhileLoopBreakWithValue(t *testing.T) {
	v, _ := runSource(t, `
i = 0;
result = while i < 10 {
    i = i + 1;
    if i == 5 { break i * 100 }
};
result
`)
	if v.Kind != vm.VNum || v.Num.String() != "500" {
		t.Errorf("got %v, want 500", v)
	}
}

func TestStringMethodChaining(t *testing.T) {
	_, out := runSource(t, `print("Hello World".to_lower().split(" ").join("-"))`)
	if out != "hello-world\n" {
		t.Errorf("got %q, want %q", out, "hello-world\n")
	}
}

func TestDescendingRangeIteratesBackward(t *testing.T) {
	_, out := runSource(t, `
for i in 5..0 {
    print(i)
}
`)
	want := "5\n4\n3\n2\n1\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestOpenEndedRangeSlices(t *testing.T) {
	_, out := runSource(t, `
s = "hello";
print(s[2..]);
print(s[..2])
`)
	want := "llo\nhe\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestSortWithKeyFunction(t *testing.T) {
	_, out := runSource(t, `print([1, 3, 2].sort(fn(x) { 0 - x }))`)
	if out != "[3, 2, 1]\n" {
		t.Errorf("got %q, want %q", out, "[3, 2, 1]\n")
	}
}

func TestRegexFindWithNumericGroup(t *testing.T) {
	_, out := runSource(t, `
r = re"(\d+)" n;
print(r.find("I have 42 apples"))
`)
	want := `(42, "42")` + "\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestRotAndBinaryAreMethods(t *testing.T) {
	_, out := runSource(t, `
x = 5;
print("abc".rot());
print(x.binary())
`)
	want := "nop\n101\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
