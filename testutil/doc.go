// Package testutil provides fakes for the external collaborators of a
// transcription job: a scripted engine, a duration estimator, an audio
// extractor that writes real files into the job workspace, and helpers that
// create source media of a given apparent size.
//
//	eng := testutil.NewEngine("sherpa", "hello", "world")
//	reg := engine.NewRegistry()
//	reg.Register(eng.Name(), eng.Factory(), true)
package testutil
