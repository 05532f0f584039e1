package machine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbsvm/sbs/lang/compiler"
	"github.com/sbsvm/sbs/lang/host"
	"github.com/sbsvm/sbs/lang/machine"
	"github.com/sbsvm/sbs/lang/value"
)

func mustCompile(t *testing.T, h *host.Host, src string) *compiler.Chunk {
	t.Helper()
	chunk, errs := compiler.Compile(src, h, compiler.DefaultOptions())
	require.Empty(t, errs)
	require.NotNil(t, chunk)
	return chunk
}

func TestExecuteArithmeticAndPrint(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int x = 1 + 2 * 3;
		Print(x);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	assert.Equal(t, machine.StateFinished, vm.State())
	require.Len(t, logged, 1)
	assert.Equal(t, "7", logged[0])
}

func TestExecuteConditionalAndFunctionCallMax(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int Max(int a, int b) {
			if (a > b) {
				return a;
			} else {
				return b;
			}
		}
		Print(Max(3, 7));
		Print(Max(9, 2));
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 2)
	assert.Equal(t, "7", logged[0])
	assert.Equal(t, "9", logged[1])
}

func TestExecuteIfWithoutElseDoesNotLeakCondition(t *testing.T) {
	// Regression: JUMP_IF_FALSE only peeks its operand, so an `if` with no
	// `else` must still pop the condition on the false path, or the next
	// statement would read a stale boolean instead of its own operand.
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int x = 0;
		if (x == 1) {
			x = 99;
		}
		Print(x);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	assert.Equal(t, "0", logged[0])
}

func TestExecuteLoopWithBreakSumsPartialSeries(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int total = 0;
		int i = 0;
		while (i < 100) {
			if (i == 5) {
				break;
			}
			total = total + i;
			i = i + 1;
		}
		Print(total);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	assert.Equal(t, "10", logged[0]) // 0+1+2+3+4
}

func TestExecuteForLoopContinueStillRunsIncrement(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int count = 0;
		int i;
		for (i = 0; i < 10; i = i + 1) {
			if (i == 5) {
				continue;
			}
			count = count + 1;
		}
		Print(count);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	// 10 iterations, one skipped by continue: if the loop never advanced
	// past i==5 (the bug this locks in), this would hang and trip the
	// instruction limit instead of finishing.
	assert.Equal(t, "9", logged[0])
}

func TestExecuteSwitchWithMultipleCasesDoesNotLeakStack(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int classify(int x) {
			int result;
			switch (x) {
				case 1:
					result = 10;
				case 2:
					result = 20;
				case 3:
					result = 30;
				default:
					result = -1;
			}
			return result;
		}
		Print(classify(1));
		Print(classify(2));
		Print(classify(3));
		Print(classify(99));
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 4)
	assert.Equal(t, "10", logged[0])
	assert.Equal(t, "20", logged[1])
	assert.Equal(t, "30", logged[2])
	assert.Equal(t, "-1", logged[3])
}

func TestExecuteArrayGetAndSet(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int[] xs = {1, 2, 3};
		xs[1] = 99;
		Print(xs[1]);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	assert.Equal(t, "99", logged[0])
}

func TestExecuteArrayAssignmentCopiesRatherThanAliases(t *testing.T) {
	// Regression: §3.3 gives arrays value semantics. `int[] b = a;`
	// followed by a mutation through b must not be visible through a.
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int[] a = {1, 2, 3};
		int[] b = a;
		b[0] = 99;
		Print(a[0]);
		Print(b[0]);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 2)
	assert.Equal(t, "1", logged[0])
	assert.Equal(t, "99", logged[1])
}

func TestExecuteFunctionArgumentArrayIsCopiedNotAliased(t *testing.T) {
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		void mutate(int[] xs) {
			xs[0] = -1;
		}
		int[] a = {1, 2, 3};
		mutate(a);
		Print(a[0]);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	assert.Equal(t, "1", logged[0])
}

func TestExecuteArrayElementAssignmentOfArrayCopiesRatherThanAliases(t *testing.T) {
	// Regression: `outer[0] = inner;` (SET_ELEMENT) must clone inner's
	// backing storage before storing it, same as a plain variable
	// assignment does (§3.3) — otherwise a later mutation through
	// `inner` would be visible through `outer[0]` too.
	var logged []string
	h := host.New()
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int[] inner = {1, 2};
		int[][] outer = {inner};
		outer[0] = inner;
		inner[0] = 99;
		Print(inner[0]);
		Print(outer[0][0]);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 2)
	assert.Equal(t, "99", logged[0])
	assert.Equal(t, "1", logged[1])
}

func TestExecuteArrayIndexOutOfBoundsIsRuntimeError(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `
		int[] xs = {1, 2, 3};
		int y = xs[10];
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.False(t, ok)
	require.Equal(t, machine.StateError, vm.State())
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindIndexOutOfBounds, vm.ErrorValues()[0].Kind())
}

func TestExecuteGetFieldOnMissingFieldIsUnknownFieldError(t *testing.T) {
	// Regression: a missing struct field must raise UnknownField (§4.5.4),
	// not silently push Nil.
	h := host.New()
	h.RegisterNative("NewPoint", func(vmHandle any, args []value.Value) (value.Value, error) {
		s := value.NewStruct("Point")
		s.Set("x", value.NewNumber(1))
		return value.NewStructValue(s), nil
	})
	chunk := mustCompile(t, h, `
		int p = NewPoint();
		int y = p.y;
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.False(t, ok)
	require.Equal(t, machine.StateError, vm.State())
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindUnknownField, vm.ErrorValues()[0].Kind())
}

func TestExecuteGetFieldOnExistingFieldSucceeds(t *testing.T) {
	h := host.New()
	h.RegisterNative("NewPoint", func(vmHandle any, args []value.Value) (value.Value, error) {
		s := value.NewStruct("Point")
		s.Set("x", value.NewNumber(1))
		return value.NewStructValue(s), nil
	})
	var logged []string
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		int p = NewPoint();
		Print(p.x);
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	require.Len(t, logged, 1)
	assert.Equal(t, "1", logged[0])
}

func TestExecutePauseAndResumeRoundTripsThroughNativeSleep(t *testing.T) {
	h := host.New()
	h.RegisterNative("Sleep", func(vmHandle any, args []value.Value) (value.Value, error) {
		vmHandle.(*machine.VM).Pause()
		return value.NewNil(), nil
	})
	var logged []string
	h.Sink = func(level host.LogLevel, msg string) { logged = append(logged, msg) }
	chunk := mustCompile(t, h, `
		Print("before");
		Sleep();
		Print("after");
	`)

	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok, "errors: %v", vm.Errors())
	assert.Equal(t, machine.StatePaused, vm.State())
	require.Len(t, logged, 1)
	assert.Equal(t, "before", logged[0])

	ok = vm.Resume(context.Background())
	require.True(t, ok, "errors: %v", vm.Errors())
	assert.Equal(t, machine.StateFinished, vm.State())
	require.Len(t, logged, 2)
	assert.Equal(t, "after", logged[1])
}

func TestExecuteResumeWithoutPauseIsNoop(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `int x = 1;`)
	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.True(t, ok)
	assert.False(t, vm.Resume(context.Background()))
}

func TestExecuteDivisionByZeroIsRuntimeError(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `int x = 1 / 0;`)
	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.False(t, ok)
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindDivisionByZero, vm.ErrorValues()[0].Kind())
}

func TestExecuteUndefinedGlobalIsRuntimeError(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `Print(missing);`)
	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.False(t, ok)
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindUndefinedGlobal, vm.ErrorValues()[0].Kind())
}

func TestExecuteUnknownNativeIsRuntimeError(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `UnknownNative(1, 2);`)
	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(context.Background(), chunk)
	require.False(t, ok)
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindUnknownNative, vm.ErrorValues()[0].Kind())
}

func TestExecuteInstructionLimitStopsRunawayLoop(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `
		int i = 0;
		while (i < 1) {
			i = i + 0;
		}
	`)
	vm := machine.New(h, host.Limits{MaxInstructions: 50})
	ok := vm.Execute(context.Background(), chunk)
	require.False(t, ok)
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindInstructionLimit, vm.ErrorValues()[0].Kind())
}

func TestExecuteContextCancellationSurfacesAsTimeout(t *testing.T) {
	h := host.New()
	chunk := mustCompile(t, h, `
		int i = 0;
		while (i < 1) {
			i = i + 0;
		}
	`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vm := machine.New(h, host.DefaultLimits())
	ok := vm.Execute(ctx, chunk)
	require.False(t, ok)
	require.Len(t, vm.ErrorValues(), 1)
	assert.Equal(t, machine.KindTimeout, vm.ErrorValues()[0].Kind())
}

func TestExecuteRecompilesCleanlyAfterError(t *testing.T) {
	h := host.New()
	bad := mustCompile(t, h, `int x = 1 / 0;`)
	vm := machine.New(h, host.DefaultLimits())
	require.False(t, vm.Execute(context.Background(), bad))

	good := mustCompile(t, h, `int x = 1;`)
	ok := vm.Execute(context.Background(), good)
	require.True(t, ok, "errors: %v", vm.Errors())
	assert.Empty(t, vm.Errors())
}
