// Package pipeline describes lazy reactive pipelines.
//
// A Pipeline is an immutable list of steps over a Source. Building one
// performs no work: every builder method returns a new Pipeline and leaves
// the receiver untouched, so the same prefix can be shared by several
// pipelines. Work starts only when the engine package activates it.
//
// Steps are opaque stage functions plus scheduling directives:
//
//   - SubscribeOn(s): where the source produces values. The first one in
//     definition order wins, wherever it appears in the chain.
//   - PublishOn(s): everything downstream runs on a worker of s.
//   - DelayElements(d, s): every value is held for d and continues on s.
//   - Parallel(n): values are dealt to n rails; RunOn(s) moves each rail to
//     its own worker of s.
//
// # Usage
//
//	p := pipeline.Just(1, 2, 3).
//	    SubscribeOn(reg.Single()).
//	    PublishOn(reg.BoundedElastic()).
//	    Map(pipeline.Transform(func(_ context.Context, n int) (int, error) {
//	        return n * 10, nil
//	    }))
//
// Pipelines can also be declared in YAML and built against a StageRegistry,
// see ParseDefinition and Build.
package pipeline
