package jinja

import (
	"reflect"
	"strings"
)

// registerBuiltinTests wires up the `is` registry spec.md §4.6 names
// alongside the filter registry, using the same FilterContext-free
// TestFunc signature environment.go declares for `is` tests.
func registerBuiltinTests(env *Environment) {
	t := env.Tests
	t["defined"] = testDefined
	t["undefined"] = testUndefined
	t["none"] = testNone
	t["boolean"] = testBoolean
	t["false"] = testFalse
	t["true"] = testTrue
	t["string"] = testString
	t["number"] = testNumber
	t["integer"] = testInteger
	t["float"] = testFloat
	t["mapping"] = testMapping
	t["sequence"] = testSequence
	t["iterable"] = testIterable
	t["callable"] = testCallable
	t["sameas"] = testSameas
	t["in"] = testIn
	t["even"] = testEven
	t["odd"] = testOdd
	t["divisibleby"] = testDivisibleby
	t["lower"] = testLower
	t["upper"] = testUpper
	t["eq"] = testEq
	t["equalto"] = testEq
	t["=="] = testEq
	t["ne"] = testNe
	t["!="] = testNe
	t["lt"] = testLt
	t["lessthan"] = testLt
	t["<"] = testLt
	t["gt"] = testGt
	t["greaterthan"] = testGt
	t[">"] = testGt
	t["le"] = testLe
	t["<="] = testLe
	t["ge"] = testGe
	t[">="] = testGe
	t["escaped"] = testEscaped
}

func testDefined(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, undef := v.(*Undefined)
	return !undef, nil
}

func testUndefined(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, undef := v.(*Undefined)
	return undef, nil
}

func testNone(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return v == nil, nil
}

func testBoolean(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, ok := v.(bool)
	return ok, nil
}

func testFalse(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	b, ok := v.(bool)
	return ok && !b, nil
}

func testTrue(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	b, ok := v.(bool)
	return ok && b, nil
}

func testString(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, ok := stringLike(v)
	return ok, nil
}

func testNumber(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, ok := ToFloat(v)
	_, isBool := v.(bool)
	return ok && !isBool, nil
}

func testInteger(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return isInt(v), nil
}

func testFloat(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, ok := v.(float64)
	return ok, nil
}

func testMapping(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, ok := ToMap(v)
	return ok, nil
}

func testSequence(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if _, ok := stringLike(v); ok {
		return true, nil
	}
	_, ok := ToSlice(v)
	return ok, nil
}

func testIterable(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if _, ok := stringLike(v); ok {
		return true, nil
	}
	if _, ok := ToSlice(v); ok {
		return true, nil
	}
	_, ok := ToMap(v)
	return ok, nil
}

func testCallable(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	switch v.(type) {
	case FuncValue, *Macro:
		return true, nil
	}
	return reflect.ValueOf(v).Kind() == reflect.Func, nil
}

func testSameas(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	return v == args[0], nil
}

func testIn(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	return containsValue(args[0], v), nil
}

func testEven(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return toInt64(v)%2 == 0, nil
}

func testOdd(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return toInt64(v)%2 != 0, nil
}

func testDivisibleby(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	d := toInt64(args[0])
	if d == 0 {
		return false, nil
	}
	return toInt64(v)%d == 0, nil
}

func testLower(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	s, ok := stringLike(v)
	return ok && s == strings.ToLower(s), nil
}

func testUpper(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	s, ok := stringLike(v)
	return ok && s == strings.ToUpper(s), nil
}

func testEq(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	return Equal(v, args[0]), nil
}

func testNe(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	return !Equal(v, args[0]), nil
}

func testLt(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return compareWith(v, args, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b })
}

func testGt(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return compareWith(v, args, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b })
}

func testLe(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return compareWith(v, args, func(a, b float64) bool { return a <= b }, func(a, b string) bool { return a <= b })
}

func testGe(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	return compareWith(v, args, func(a, b float64) bool { return a >= b }, func(a, b string) bool { return a >= b })
}

func compareWith(v interface{}, args []interface{}, numOp func(float64, float64) bool, strOp func(string, string) bool) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	other := args[0]
	if as, aok := stringLike(v); aok {
		if bs, bok := stringLike(other); bok {
			return strOp(as, bs), nil
		}
	}
	af, aok := ToFloat(v)
	bf, bok := ToFloat(other)
	if aok && bok {
		return numOp(af, bf), nil
	}
	return false, nil
}

func testEscaped(v interface{}, args []interface{}, kwargs map[string]interface{}) (bool, error) {
	_, ok := v.(Safe)
	return ok, nil
}
