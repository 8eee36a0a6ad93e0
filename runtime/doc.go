// Package runtime hosts patched assemblies with wazero.
//
//	rt, err := runtime.New(ctx, db, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.Bind("Counter", "Add", func(ctx context.Context, f *runtime.Frame) error {
//	    n, err := f.Arg("Amount")
//	    if err != nil {
//	        return err
//	    }
//	    return f.SetReturn(n)
//	})
//
//	mod, err := rt.Load(ctx, patched)
//	inst, err := mod.Instantiate(ctx)
//	obj, err := inst.New("Counter")
//	res, err := inst.Call(ctx, "Counter.Add", uint64(obj), 5, 0)
//
// The runtime implements the "bindgen" host module over a reflection
// database: handle and offset queries answer from the metadata, marshaller
// cells are runtime codecs chosen by the translator registry, and invoke
// dispatches to the Go function bound to the native function's owner and
// name. The assembly's linear memory stands in for native memory, so
// objects, parameter buffers and container payloads all live there.
package runtime
