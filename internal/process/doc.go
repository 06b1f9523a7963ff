// Package process runs external processes and collects their output.
//
// An Executor owns exactly one process and three tasks:
//   - an exit waiter that reaps the process and reports its exit code
//   - a stdout drainer and a stderr drainer that read lines into hooks
//
// The caller may write to stdin while the process runs, then calls Join to
// get one result: the exit code, or an *Error describing the first failure.
// A failing hook, a timeout or a cancelled context kills the whole process
// group; the process is always reaped before Join returns.
//
// Example:
//
//	e, err := process.New([]string{"sh", "-c", "cat; echo done"}, &process.Options{
//	    Hooks: process.Hooks{
//	        OnOutputLine: func(line string) error {
//	            fmt.Println(line)
//	            return nil
//	        },
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	_ = e.Println("hello")
//	_ = e.SendEOF()
//	code, err := e.Join(ctx, 10*time.Second)
//
// Run wraps the same sequence for callers that only need the Result.
package process
