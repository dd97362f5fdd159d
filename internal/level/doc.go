// Package level turns blocks of PCM16 microphone samples into a loudness score.
// The score is an average-magnitude logarithmic proxy (20*log10 of the mean
// absolute amplitude), not a calibrated sound pressure level.
package level
