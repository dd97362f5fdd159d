// Package control implements the noise-to-volume control loop.
//
// Every tick the Loop reads one block of samples from a SampleSource, scores it
// with level.Estimate, maps the score to a target volume with MapTarget, and
// moves the VolumeSink one step toward that target with Step. Ticks are driven
// by a Scheduler and never overlap each other or Start/Stop.
package control
