// Package rcu implements quiescent-state-based reclamation (QSBR).
//
// Many goroutines read shared pointers without locks; a writer that
// replaces one hands the old target to the engine with Postpone instead
// of recycling it. The engine runs the postponed callback only once every
// registered thread has either been quiescent or passed a quiescent point
// after the callback's batch was sealed.
//
// Everything lives in one explicitly constructed Domain:
//
//	d := rcu.New(rcu.Config{})
//	d.Start(ctx)
//	defer d.Close()
//
//	reader := d.Register("reader")
//	g := table.Read(reader) // g.Get() is valid until reader's next quiescent point
//	...
//	reader.Quiesce()
//
// A "thread" here is any goroutine that registered a Thread record, either
// explicitly (Register, Spawn) or implicitly on first use (Self). A Thread
// handle must only be used by the goroutine that owns it.
//
// Barrier and Synchronize must not be called from inside a postponed
// callback; callbacks run while the sweeper is held.
package rcu
