package handlebars

import (
	"context"
	"math"
)

// numericArgs coerces every argument to float64, skipping values that do
// not coerce.
func numericArgs(args []any) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		if n, ok := toNumber(a); ok {
			out = append(out, n)
		}
	}
	return out
}

func mathAdd(_ context.Context, _ *State, args []any) (any, error) {
	sum := 0.0
	for _, n := range numericArgs(args) {
		sum += n
	}
	return sum, nil
}

func mathSub(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := nums[0]
	for _, n := range nums[1:] {
		result -= n
	}
	return result, nil
}

func mathMult(_ context.Context, _ *State, args []any) (any, error) {
	result := 1.0
	for _, n := range numericArgs(args) {
		result *= n
	}
	return result, nil
}

// mathDiv returns a / b, or 0 when b is 0.
func mathDiv(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) < 2 || nums[1] == 0 {
		return 0.0, nil
	}
	return nums[0] / nums[1], nil
}

// mathMod returns a % b, or 0 when b is 0.
func mathMod(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) < 2 || nums[1] == 0 {
		return 0.0, nil
	}
	return math.Mod(nums[0], nums[1]), nil
}

func mathMin(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := nums[0]
	for _, n := range nums[1:] {
		result = math.Min(result, n)
	}
	return result, nil
}

func mathMax(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := nums[0]
	for _, n := range nums[1:] {
		result = math.Max(result, n)
	}
	return result, nil
}

func mathInc(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) == 0 {
		return 1.0, nil
	}
	return nums[0] + 1, nil
}

func mathDec(_ context.Context, _ *State, args []any) (any, error) {
	nums := numericArgs(args)
	if len(nums) == 0 {
		return -1.0, nil
	}
	return nums[0] - 1, nil
}

// logicEq compares numerically when both sides coerce to numbers, otherwise
// by stringified value.
func logicEq(_ context.Context, _ *State, args []any) (any, error) {
	if len(args) < 2 {
		return false, nil
	}
	a, aok := toNumber(args[0])
	b, bok := toNumber(args[1])
	if aok && bok {
		return a == b, nil
	}
	return stringify(args[0]) == stringify(args[1]), nil
}

func logicNe(ctx context.Context, st *State, args []any) (any, error) {
	eq, _ := logicEq(ctx, st, args)
	return !eq.(bool), nil
}

func compareNums(args []any) (float64, float64, bool) {
	if len(args) < 2 {
		return 0, 0, false
	}
	a, aok := toNumber(args[0])
	b, bok := toNumber(args[1])
	return a, b, aok && bok
}

func logicLt(_ context.Context, _ *State, args []any) (any, error) {
	a, b, ok := compareNums(args)
	return ok && a < b, nil
}

func logicLe(_ context.Context, _ *State, args []any) (any, error) {
	a, b, ok := compareNums(args)
	return ok && a <= b, nil
}

func logicGt(_ context.Context, _ *State, args []any) (any, error) {
	a, b, ok := compareNums(args)
	return ok && a > b, nil
}

func logicGe(_ context.Context, _ *State, args []any) (any, error) {
	a, b, ok := compareNums(args)
	return ok && a >= b, nil
}

func logicAnd(_ context.Context, _ *State, args []any) (any, error) {
	for _, a := range args {
		if !truthy(a) {
			return false, nil
		}
	}
	return len(args) > 0, nil
}

func logicOr(_ context.Context, _ *State, args []any) (any, error) {
	for _, a := range args {
		if truthy(a) {
			return true, nil
		}
	}
	return false, nil
}

func logicNot(_ context.Context, _ *State, args []any) (any, error) {
	if len(args) == 0 {
		return true, nil
	}
	return !truthy(args[0]), nil
}

// logicIsSet reports whether the argument resolved to a present value.
func logicIsSet(_ context.Context, _ *State, args []any) (any, error) {
	return len(args) > 0 && args[0] != nil, nil
}
